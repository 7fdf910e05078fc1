package domain

import (
	"context"
	"errors"
)

type CreatePlanRequest struct {
	CreatorID   string   `json:"creator_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Currency    string   `json:"currency"`
	Features    []string `json:"features"`
}

type ListPlanRequest struct {
	CreatorID  string
	ActiveOnly bool
}

type Service interface {
	Create(context.Context, CreatePlanRequest) (Plan, error)
	Get(ctx context.Context, id string) (Plan, error)
	ListByCreator(context.Context, ListPlanRequest) ([]Plan, error)
	SetActive(ctx context.Context, id string, active bool) (Plan, error)
}

var (
	ErrInvalidCreator  = errors.New("invalid_creator")
	ErrInvalidPlan     = errors.New("invalid_plan")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrPlanNotFound    = errors.New("plan_not_found")
	ErrPlanInactive    = errors.New("plan_inactive")
)
