package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fanvault/internal/clock"
	messagedomain "github.com/smallbiznis/fanvault/internal/message/domain"
	obsmetrics "github.com/smallbiznis/fanvault/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       messagedomain.Repository
	paymentsvc paymentdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       messagedomain.Repository
	Paymentsvc paymentdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) messagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("message.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		paymentsvc: p.Paymentsvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Send(ctx context.Context, req messagedomain.SendRequest) (messagedomain.View, error) {
	senderID, err := s.parseID(req.SenderID, messagedomain.ErrInvalidSender)
	if err != nil {
		return messagedomain.View{}, err
	}
	recipientID, err := s.parseID(req.RecipientID, messagedomain.ErrInvalidRecipient)
	if err != nil {
		return messagedomain.View{}, err
	}
	if senderID == recipientID {
		return messagedomain.View{}, messagedomain.ErrInvalidRecipient
	}

	body := strings.TrimSpace(req.Body)
	mediaRef := strings.TrimSpace(req.MediaRef)
	if body == "" && mediaRef == "" {
		return messagedomain.View{}, messagedomain.ErrEmptyMessage
	}
	if req.PPVPriceCents != nil && *req.PPVPriceCents <= 0 {
		return messagedomain.View{}, messagedomain.ErrInvalidPrice
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	message := messagedomain.Message{
		ID:          s.genID.Generate(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Currency:    currency,
		CreatedAt:   s.clock.Now(),
	}
	if body != "" {
		message.Body = &body
	}
	if mediaRef != "" {
		message.MediaRef = &mediaRef
	}
	if req.PPVPriceCents != nil {
		price := *req.PPVPriceCents
		message.PPVPriceCents = &price
	}

	if err := s.repo.InsertMessage(ctx, s.db, &message); err != nil {
		return messagedomain.View{}, err
	}

	s.log.Info("message sent",
		zap.String("message_id", message.ID.String()),
		zap.String("sender_id", message.SenderID.String()),
		zap.Bool("ppv", message.Priced()),
	)

	// The sender's view is never locked.
	return messagedomain.Resolve(message, senderID, false), nil
}

// Unlock grants the payer access to a priced message after one successful
// charge. The PENDING unlock row claimed before the gateway call is the
// double-charge guard; it is completed on success and removed on decline, so
// a declined payer can retry while an unlocked payer is never charged again.
func (s *Service) Unlock(ctx context.Context, req messagedomain.UnlockRequest) (messagedomain.View, error) {
	messageID, err := s.parseID(req.MessageID, messagedomain.ErrInvalidMessage)
	if err != nil {
		return messagedomain.View{}, err
	}
	payerID, err := s.parseID(req.PayerID, messagedomain.ErrInvalidPayer)
	if err != nil {
		return messagedomain.View{}, err
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return messagedomain.View{}, paymentdomain.ErrInvalidSourceToken
	}

	message, err := s.repo.FindMessageByID(ctx, s.db, messageID)
	if err != nil {
		return messagedomain.View{}, err
	}
	if message == nil {
		return messagedomain.View{}, messagedomain.ErrMessageNotFound
	}
	if !message.Priced() || payerID == message.SenderID {
		return messagedomain.View{}, messagedomain.ErrNotLocked
	}

	existing, err := s.repo.FindUnlock(ctx, s.db, messageID, payerID)
	if err != nil {
		return messagedomain.View{}, err
	}
	if existing != nil {
		return messagedomain.View{}, unlockStateError(existing)
	}

	pending := messagedomain.Unlock{
		ID:        s.genID.Generate(),
		MessageID: messageID,
		PayerID:   payerID,
		Status:    messagedomain.UnlockStatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertUnlock(ctx, s.db, &pending); err != nil {
		// Unique index collision: someone else claimed the window between the
		// lookup above and this insert.
		raced, lookupErr := s.repo.FindUnlock(ctx, s.db, messageID, payerID)
		if lookupErr == nil && raced != nil {
			return messagedomain.View{}, unlockStateError(raced)
		}
		return messagedomain.View{}, err
	}

	attempt, err := s.paymentsvc.Charge(ctx, paymentdomain.ChargeParams{
		AccountID:   payerID,
		AmountCents: *message.PPVPriceCents,
		Currency:    message.Currency,
		SourceToken: req.SourceToken,
		TargetType:  paymentdomain.TargetTypeMessage,
		TargetID:    messageID,
	})
	if err != nil {
		_ = s.repo.DeleteUnlock(ctx, s.db, pending.ID)
		return messagedomain.View{}, err
	}
	if attempt.Status != paymentdomain.AttemptStatusCompleted {
		if deleteErr := s.repo.DeleteUnlock(ctx, s.db, pending.ID); deleteErr != nil {
			s.log.Error("failed to release pending unlock",
				zap.String("unlock_id", pending.ID.String()),
				zap.Error(deleteErr),
			)
		}
		reason := attempt.DeclineReason
		if reason == "" {
			reason = "declined"
		}
		return messagedomain.View{}, fmt.Errorf("%w: %s", paymentdomain.ErrPaymentDeclined, reason)
	}

	if err := s.repo.CompleteUnlock(ctx, s.db, pending.ID, attempt.ID, s.clock.Now()); err != nil {
		return messagedomain.View{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordUnlock(ctx)
	}
	s.log.Info("message unlocked",
		zap.String("message_id", messageID.String()),
		zap.String("payer_id", payerID.String()),
		zap.Int64("amount_cents", *message.PPVPriceCents),
	)

	return messagedomain.Resolve(*message, payerID, true), nil
}

func (s *Service) MarkRead(ctx context.Context, messageID string) (messagedomain.Message, error) {
	id, err := s.parseID(messageID, messagedomain.ErrInvalidMessage)
	if err != nil {
		return messagedomain.Message{}, err
	}

	message, err := s.repo.FindMessageByID(ctx, s.db, id)
	if err != nil {
		return messagedomain.Message{}, err
	}
	if message == nil {
		return messagedomain.Message{}, messagedomain.ErrMessageNotFound
	}
	if message.IsRead {
		return *message, nil
	}

	if err := s.repo.MarkRead(ctx, s.db, id); err != nil {
		return messagedomain.Message{}, err
	}
	message.IsRead = true
	return *message, nil
}

func (s *Service) Thread(ctx context.Context, req messagedomain.ThreadRequest) ([]messagedomain.View, error) {
	accountA, err := s.parseID(req.AccountA, messagedomain.ErrInvalidSender)
	if err != nil {
		return nil, err
	}
	accountB, err := s.parseID(req.AccountB, messagedomain.ErrInvalidRecipient)
	if err != nil {
		return nil, err
	}
	viewerID, err := s.parseID(req.ViewerID, messagedomain.ErrInvalidViewer)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.FindThread(ctx, s.db, accountA, accountB)
	if err != nil {
		return nil, err
	}

	priced := make([]snowflake.ID, 0, len(messages))
	for _, message := range messages {
		if message.Priced() && message.SenderID != viewerID {
			priced = append(priced, message.ID)
		}
	}
	unlocked, err := s.repo.FindCompletedUnlocks(ctx, s.db, viewerID, priced)
	if err != nil {
		return nil, err
	}

	views := make([]messagedomain.View, 0, len(messages))
	for _, message := range messages {
		views = append(views, messagedomain.Resolve(message, viewerID, unlocked[message.ID]))
	}
	return views, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func unlockStateError(unlock *messagedomain.Unlock) error {
	if unlock.Status == messagedomain.UnlockStatusCompleted {
		return messagedomain.ErrAlreadyUnlocked
	}
	return messagedomain.ErrUnlockInFlight
}
