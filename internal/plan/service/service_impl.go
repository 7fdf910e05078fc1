package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fanvault/internal/clock"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  plandomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  plandomain.Repository
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreatePlanRequest) (plandomain.Plan, error) {
	creatorID, err := s.parseID(req.CreatorID, plandomain.ErrInvalidCreator)
	if err != nil {
		return plandomain.Plan{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return plandomain.Plan{}, plandomain.ErrInvalidName
	}
	if req.PriceCents <= 0 {
		return plandomain.Plan{}, plandomain.ErrInvalidPrice
	}

	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return plandomain.Plan{}, err
	}

	features := make([]string, 0, len(req.Features))
	for _, feature := range req.Features {
		if trimmed := strings.TrimSpace(feature); trimmed != "" {
			features = append(features, trimmed)
		}
	}

	now := s.clock.Now()
	plan := plandomain.Plan{
		ID:          s.genID.Generate(),
		CreatorID:   creatorID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Currency:    currency,
		Features:    datatypes.NewJSONSlice(features),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &plan); err != nil {
		return plandomain.Plan{}, err
	}

	s.log.Info("plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("creator_id", plan.CreatorID.String()),
		zap.Int64("price_cents", plan.PriceCents),
	)

	return plan, nil
}

func (s *Service) Get(ctx context.Context, id string) (plandomain.Plan, error) {
	planID, err := s.parseID(id, plandomain.ErrInvalidPlan)
	if err != nil {
		return plandomain.Plan{}, err
	}

	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return plandomain.Plan{}, err
	}
	if plan == nil {
		return plandomain.Plan{}, plandomain.ErrPlanNotFound
	}

	return *plan, nil
}

func (s *Service) ListByCreator(ctx context.Context, req plandomain.ListPlanRequest) ([]plandomain.Plan, error) {
	creatorID, err := s.parseID(req.CreatorID, plandomain.ErrInvalidCreator)
	if err != nil {
		return nil, err
	}

	return s.repo.FindByCreator(ctx, s.db, creatorID, req.ActiveOnly)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (plandomain.Plan, error) {
	planID, err := s.parseID(id, plandomain.ErrInvalidPlan)
	if err != nil {
		return plandomain.Plan{}, err
	}

	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return plandomain.Plan{}, err
	}
	if plan == nil {
		return plandomain.Plan{}, plandomain.ErrPlanNotFound
	}

	if plan.Active == active {
		return *plan, nil
	}

	if err := s.repo.UpdateActive(ctx, s.db, planID, active); err != nil {
		return plandomain.Plan{}, err
	}
	plan.Active = active
	plan.UpdatedAt = s.clock.Now()

	return *plan, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if currency == "" {
		return defaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", plandomain.ErrInvalidCurrency
	}
	return currency, nil
}
