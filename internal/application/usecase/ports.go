package usecase

import (
	"context"
	"net/http"

	"github.com/waste3d/coursemarket-api/internal/domain"
)

// PaymentGateway - платежный провайдер (Stripe в проде, фейк в тестах).
type PaymentGateway interface {
	CreateChargeIntent(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeIntent, error)
	RetrieveChargeIntent(ctx context.Context, mode domain.CheckoutMode, providerRef string) (*domain.ChargeIntent, error)
	CancelChargeIntent(ctx context.Context, mode domain.CheckoutMode, providerRef string) error
	VerifyCallback(payload []byte, signature string) (*domain.PaymentEvent, error)
}

type IdentityVerifier interface {
	VerifyIdentityEvent(payload []byte, headers http.Header) (*domain.IdentityEvent, error)
}

// EventCache - необязательная отметка об обработанных событиях (redis).
type EventCache interface {
	MarkProcessed(ctx context.Context, provider, eventID string) error
	IsProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

const (
	ProviderStripe = "stripe"
	ProviderClerk  = "clerk"
)
