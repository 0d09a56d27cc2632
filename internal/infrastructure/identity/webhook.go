package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/waste3d/coursemarket-api/internal/domain"

	svix "github.com/svix/svix-webhooks/go"
)

// WebhookVerifier проверяет svix-подписанные колбэки провайдера идентификации.
type WebhookVerifier struct {
	wh *svix.Webhook
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return &WebhookVerifier{}, nil
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("identity webhook secret: %w", err)
	}
	return &WebhookVerifier{wh: wh}, nil
}

type userPayload struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	PrimaryEmailID string `json:"primary_email_address_id"`
	EmailAddresses []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (p userPayload) email() string {
	for _, e := range p.EmailAddresses {
		if e.ID == p.PrimaryEmailID {
			return e.EmailAddress
		}
	}
	if len(p.EmailAddresses) > 0 {
		return p.EmailAddresses[0].EmailAddress
	}
	return ""
}

// VerifyIdentityEvent: без валидной подписи - ErrAuthentication, состояние не трогаем.
func (v *WebhookVerifier) VerifyIdentityEvent(payload []byte, headers http.Header) (*domain.IdentityEvent, error) {
	if v.wh == nil {
		return nil, fmt.Errorf("%w: webhook secret is not configured", domain.ErrAuthentication)
	}
	if err := v.wh.Verify(payload, headers); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: identity payload: %v", domain.ErrValidation, err)
	}

	ev := &domain.IdentityEvent{ID: headers.Get("svix-id"), Type: env.Type, Kind: domain.IdentityIgnored}
	switch env.Type {
	case "user.created", "user.updated", "user.deleted":
	default:
		return ev, nil
	}

	var data userPayload
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: identity user payload: %v", domain.ErrValidation, err)
	}
	if data.ID == "" {
		return nil, fmt.Errorf("%w: identity event without user id", domain.ErrValidation)
	}

	ev.User = domain.User{ID: data.ID}
	switch env.Type {
	case "user.created":
		ev.Kind = domain.IdentityUserCreated
	case "user.updated":
		ev.Kind = domain.IdentityUserUpdated
	case "user.deleted":
		ev.Kind = domain.IdentityUserDeleted
		return ev, nil
	}
	ev.User.Email = data.email()
	ev.User.Name = strings.TrimSpace(data.FirstName + " " + data.LastName)
	ev.User.ImageURL = data.ImageURL
	return ev, nil
}
