package domain

import (
	"context"
	"errors"
)

type SendRequest struct {
	SenderID      string `json:"sender_id"`
	RecipientID   string `json:"recipient_id"`
	Body          string `json:"body,omitempty"`
	MediaRef      string `json:"media_ref,omitempty"`
	PPVPriceCents *int64 `json:"ppv_price_cents,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

type UnlockRequest struct {
	MessageID   string
	PayerID     string `json:"payer_id"`
	SourceToken string `json:"source_token"`
}

type ThreadRequest struct {
	AccountA string
	AccountB string
	ViewerID string
}

type Service interface {
	Send(context.Context, SendRequest) (View, error)
	Unlock(context.Context, UnlockRequest) (View, error)
	MarkRead(ctx context.Context, messageID string) (Message, error)
	Thread(context.Context, ThreadRequest) ([]View, error)
}

var (
	ErrInvalidSender    = errors.New("invalid_sender")
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrInvalidPayer     = errors.New("invalid_payer")
	ErrInvalidMessage   = errors.New("invalid_message")
	ErrInvalidViewer    = errors.New("invalid_viewer")
	ErrEmptyMessage     = errors.New("empty_message")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrMessageNotFound  = errors.New("message_not_found")

	// ErrNotLocked: the message has no price, or the payer is its sender.
	ErrNotLocked = errors.New("message_not_locked")
	// ErrAlreadyUnlocked: a completed unlock exists for this payer; calling
	// again never charges twice.
	ErrAlreadyUnlocked = errors.New("message_already_unlocked")
	// ErrUnlockInFlight: another unlock for the same (message, payer) holds
	// the charge window. Safe to retry after backoff.
	ErrUnlockInFlight = errors.New("unlock_in_flight")
)
