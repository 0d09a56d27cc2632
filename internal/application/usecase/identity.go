package usecase

import (
	"context"
	"errors"
	"net/http"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/obs"
)

// IdentityUseCase ведет жизненный цикл юзеров по колбэкам провайдера идентификации.
type IdentityUseCase struct {
	users         *repository.UserRepository
	webhookEvents *repository.WebhookEventRepository
	verifier      IdentityVerifier
	events        EventCache
}

func NewIdentityUseCase(ur *repository.UserRepository, wr *repository.WebhookEventRepository, v IdentityVerifier, ec EventCache) *IdentityUseCase {
	return &IdentityUseCase{users: ur, webhookEvents: wr, verifier: v, events: ec}
}

func (uc *IdentityUseCase) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) (string, error) {
	ev, err := uc.verifier.VerifyIdentityEvent(payload, headers)
	if err != nil {
		obs.Logger.Warn("identity callback rejected", "err", err)
		return "", err
	}

	if uc.events != nil && ev.ID != "" {
		if ok, err := uc.events.IsProcessed(ctx, ProviderClerk, ev.ID); err == nil && ok {
			return domain.OutcomeNoop, nil
		}
	}

	outcome := domain.OutcomeApplied
	switch ev.Kind {
	case domain.IdentityUserCreated, domain.IdentityUserUpdated:
		user := ev.User
		err = uc.users.Upsert(ctx, &user)
		if errors.Is(err, domain.ErrUserDeleted) {
			// доставка после user.deleted: удаление окончательное
			obs.Logger.Info("identity event for deleted user skipped", "event_id", ev.ID, "event_type", ev.Type, "user_id", user.ID)
			outcome, err = domain.OutcomeNoop, nil
		}
	case domain.IdentityUserDeleted:
		err = uc.users.Delete(ctx, ev.User.ID)
	default:
		outcome = domain.OutcomeIgnored
	}
	if err != nil {
		obs.Logger.Error("identity event failed", "event_id", ev.ID, "event_type", ev.Type, "err", err)
		return "", err
	}
	obs.Logger.Info("identity event applied", "event_id", ev.ID, "event_type", ev.Type, "user_id", ev.User.ID, "outcome", outcome)

	if ev.ID != "" {
		if err := uc.webhookEvents.Record(ctx, &domain.WebhookEvent{
			Provider:  ProviderClerk,
			EventID:   ev.ID,
			EventType: ev.Type,
			Outcome:   outcome,
			Payload:   payload,
		}); err != nil {
			obs.Logger.Warn("webhook audit write failed", "err", err)
		}
		if uc.events != nil {
			_ = uc.events.MarkProcessed(ctx, ProviderClerk, ev.ID)
		}
	}
	return outcome, nil
}
