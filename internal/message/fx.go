package message

import (
	"github.com/smallbiznis/fanvault/internal/message/repository"
	"github.com/smallbiznis/fanvault/internal/message/service"
	"go.uber.org/fx"
)

var Module = fx.Module("message.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
