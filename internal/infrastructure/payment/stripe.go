package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/pricing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const metadataPurchaseID = "purchaseId"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
	// Backends подменяются в тестах, nil - боевой API
	Backends *stripe.Backends
}

type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	frontendURL   string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	backends := cfg.Backends
	if backends == nil {
		// повторы делает оркестратор, сам клиент ходит к API один раз
		b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)})
		backends = &stripe.Backends{API: b, Connect: b, Uploads: b}
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, backends)
	return &StripeGateway{
		sc:            sc,
		webhookSecret: cfg.WebhookSecret,
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// CreateChargeIntent создает payment intent или checkout session. ID покупки идет
// в метаданные и в ключ идемпотентности, так что повтор вызова вернет тот же intent.
func (g *StripeGateway) CreateChargeIntent(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeIntent, error) {
	amount := pricing.MinorUnits(req.Amount, req.Currency)
	currency := strings.ToLower(req.Currency)

	switch req.Mode {
	case domain.CheckoutIntent:
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(amount),
			Currency: stripe.String(currency),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		if req.CustomerEmail != "" {
			params.ReceiptEmail = stripe.String(req.CustomerEmail)
		}
		params.Context = ctx
		params.SetIdempotencyKey("purchase-" + req.PurchaseID)
		params.AddMetadata(metadataPurchaseID, req.PurchaseID)

		pi, err := g.sc.PaymentIntents.New(params)
		if err != nil {
			return nil, providerError("create payment intent", err)
		}
		return &domain.ChargeIntent{ProviderRef: pi.ID, ClientHandle: pi.ClientSecret}, nil

	case domain.CheckoutSession:
		origin := strings.TrimRight(req.Origin, "/")
		if origin == "" {
			origin = g.frontendURL
		}
		params := &stripe.CheckoutSessionParams{
			Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
			ClientReferenceID: stripe.String(req.PurchaseID),
			SuccessURL:        stripe.String(origin + "/loading/my-enrollments"),
			CancelURL:         stripe.String(origin + "/"),
			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.CourseTitle),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			}},
			// purchaseId дублируем в payment intent сессии: payment_intent.* события тоже сверяются
			PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
				Metadata: map[string]string{metadataPurchaseID: req.PurchaseID},
			},
		}
		if req.CustomerEmail != "" {
			params.CustomerEmail = stripe.String(req.CustomerEmail)
		}
		params.Context = ctx
		params.SetIdempotencyKey("purchase-" + req.PurchaseID)
		params.AddMetadata(metadataPurchaseID, req.PurchaseID)

		s, err := g.sc.CheckoutSessions.New(params)
		if err != nil {
			return nil, providerError("create checkout session", err)
		}
		return &domain.ChargeIntent{ProviderRef: s.ID, ClientHandle: s.URL}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCheckout, req.Mode)
}

// RetrieveChargeIntent читает уже созданный intent или сессию: переиспользуемой покупке
// нужен ее текущий client secret или URL, а не новый объект у провайдера.
func (g *StripeGateway) RetrieveChargeIntent(ctx context.Context, mode domain.CheckoutMode, providerRef string) (*domain.ChargeIntent, error) {
	switch mode {
	case domain.CheckoutIntent:
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		pi, err := g.sc.PaymentIntents.Get(providerRef, params)
		if err != nil {
			return nil, providerError("retrieve payment intent", err)
		}
		return &domain.ChargeIntent{ProviderRef: pi.ID, ClientHandle: pi.ClientSecret, State: paymentIntentState(pi.Status)}, nil

	case domain.CheckoutSession:
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := g.sc.CheckoutSessions.Get(providerRef, params)
		if err != nil {
			return nil, providerError("retrieve checkout session", err)
		}
		state := domain.IntentOpen
		switch s.Status {
		case stripe.CheckoutSessionStatusComplete:
			state = domain.IntentPaid
		case stripe.CheckoutSessionStatusExpired:
			state = domain.IntentClosed
		}
		return &domain.ChargeIntent{ProviderRef: s.ID, ClientHandle: s.URL, State: state}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCheckout, mode)
}

func paymentIntentState(status stripe.PaymentIntentStatus) domain.IntentState {
	switch status {
	case stripe.PaymentIntentStatusCanceled:
		return domain.IntentClosed
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		return domain.IntentPaid
	}
	return domain.IntentOpen
}

// providerError: 4xx от провайдера (кроме 429) - отказ по существу запроса, повтор не поможет.
// Сеть, 429 и 5xx - ErrUpstream, их оркестратор повторяет.
func providerError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 &&
		se.HTTPStatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %s", domain.ErrPaymentRejected, op, se.Msg)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
}

// CancelChargeIntent отменяет intent или закрывает сессию. Если провайдер отказал
// (например, уже оплачено), покупку трогать нельзя.
func (g *StripeGateway) CancelChargeIntent(ctx context.Context, mode domain.CheckoutMode, providerRef string) error {
	if providerRef == "" {
		return nil
	}
	var err error
	switch mode {
	case domain.CheckoutIntent:
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		_, err = g.sc.PaymentIntents.Cancel(providerRef, params)
	case domain.CheckoutSession:
		params := &stripe.CheckoutSessionExpireParams{}
		params.Context = ctx
		_, err = g.sc.CheckoutSessions.Expire(providerRef, params)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownCheckout, mode)
	}
	if err != nil {
		return providerError("cancel "+providerRef, err)
	}
	return nil
}

// VerifyCallback проверяет подпись и раскладывает событие в закрытый набор вариантов.
// Любая ошибка проверки - ErrAuthentication.
func (g *StripeGateway) VerifyCallback(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", domain.ErrAuthentication)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	return parseEvent(event)
}

func parseEvent(event stripe.Event) (*domain.PaymentEvent, error) {
	ev := &domain.PaymentEvent{ID: event.ID, Type: string(event.Type), Kind: domain.PaymentIgnored}
	if event.Data != nil {
		ev.Payload = event.Data.Raw
	}

	switch ev.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent payload: %v", domain.ErrValidation, err)
		}
		ev.ProviderRef = pi.ID
		ev.PurchaseID = pi.Metadata[metadataPurchaseID]
		ev.Kind = domain.PaymentFailed
		if ev.Type == "payment_intent.succeeded" {
			ev.Kind = domain.PaymentSucceeded
		}

	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: checkout session payload: %v", domain.ErrValidation, err)
		}
		ev.ProviderRef = s.ID
		ev.PurchaseID = s.Metadata[metadataPurchaseID]
		if ev.PurchaseID == "" {
			ev.PurchaseID = s.ClientReferenceID
		}
		switch ev.Type {
		case "checkout.session.completed":
			// отложенные методы оплаты приходят позже через async_payment_*
			if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
				ev.Kind = domain.PaymentSucceeded
			}
		case "checkout.session.async_payment_succeeded":
			ev.Kind = domain.PaymentSucceeded
		default:
			ev.Kind = domain.PaymentFailed
		}
	}
	return ev, nil
}
