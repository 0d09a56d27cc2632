package usecase

import (
	"context"
	"errors"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/obs"
)

// ReconcilePayment проверяет колбэк провайдера и применяет его к покупке.
// Ошибка проверки подписи - ErrAuthentication, состояние не меняется.
// Любая другая ошибка - инфраструктурная, провайдер должен доставить событие повторно.
func (uc *PurchaseUseCase) ReconcilePayment(ctx context.Context, payload []byte, signature string) (string, error) {
	ev, err := uc.gateway.VerifyCallback(payload, signature)
	if err != nil {
		obs.Logger.Warn("payment callback rejected", "err", err)
		return "", err
	}
	return uc.ApplyPaymentEvent(ctx, ev)
}

// ApplyPaymentEvent повторно входим: одно и то же событие можно применять сколько угодно раз.
func (uc *PurchaseUseCase) ApplyPaymentEvent(ctx context.Context, ev *domain.PaymentEvent) (string, error) {
	log := obs.Logger.With("event_id", ev.ID, "event_type", ev.Type, "purchase_id", ev.PurchaseID)

	if uc.seen(ctx, ev.ID) {
		log.Debug("payment event already processed")
		uc.countReconcile(ev.Kind, domain.OutcomeNoop)
		return domain.OutcomeNoop, nil
	}

	outcome, err := uc.applyPaymentEvent(ctx, ev)
	if err != nil {
		log.Error("payment reconciliation failed", "err", err)
		uc.countReconcile(ev.Kind, "error")
		return "", err
	}
	log.Info("payment event reconciled", "kind", ev.Kind.String(), "outcome", outcome)

	if err := uc.webhookEvents.Record(ctx, &domain.WebhookEvent{
		Provider:   ProviderStripe,
		EventID:    ev.ID,
		EventType:  ev.Type,
		PurchaseID: ev.PurchaseID,
		Outcome:    outcome,
		Payload:    ev.Payload,
	}); err != nil {
		log.Warn("webhook audit write failed", "err", err)
	}
	uc.markSeen(ctx, ev.ID)
	uc.countReconcile(ev.Kind, outcome)
	return outcome, nil
}

func (uc *PurchaseUseCase) applyPaymentEvent(ctx context.Context, ev *domain.PaymentEvent) (string, error) {
	if ev.Kind == domain.PaymentIgnored {
		return domain.OutcomeIgnored, nil
	}
	if ev.PurchaseID == "" {
		obs.Logger.Info("payment event without purchaseId", "event_id", ev.ID, "event_type", ev.Type)
		return domain.OutcomeNoPurchase, nil
	}

	p, err := uc.purchases.Get(ctx, ev.PurchaseID)
	if errors.Is(err, domain.ErrNotFound) {
		obs.Logger.Warn("payment event for unknown purchase", "event_id", ev.ID, "purchase_id", ev.PurchaseID)
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return "", err
	}

	switch ev.Kind {
	case domain.PaymentSucceeded:
		result, err := uc.enrollments.CompletePurchase(ctx, p.ID)
		if err != nil {
			return "", err
		}
		switch result {
		case domain.CompletionEnrolled:
			return domain.OutcomeApplied, nil
		case domain.CompletionDuplicate:
			// юзер уже записан по другой покупке, а деньги списаны второй раз
			obs.Logger.Error("duplicate payment, refund required",
				"purchase_id", p.ID, "provider_ref", ev.ProviderRef, "user_id", p.UserID, "course_id", p.CourseID)
			uc.countRefund(domain.OutcomeDuplicate)
			return domain.OutcomeDuplicate, nil
		}
		if p.Status == domain.PurchaseFailed {
			// деньги списаны, а покупка уже закрыта: нужен ручной возврат
			obs.Logger.Error("payment succeeded for failed purchase, refund required",
				"purchase_id", p.ID, "provider_ref", ev.ProviderRef, "user_id", p.UserID, "course_id", p.CourseID)
			uc.countRefund("failed_purchase")
		}
		return domain.OutcomeNoop, nil

	case domain.PaymentFailed:
		err := uc.purchases.SetStatus(ctx, p.ID, domain.PurchaseFailed)
		if errors.Is(err, domain.ErrInvalidTransition) {
			obs.Logger.Info("failure event for terminal purchase ignored", "purchase_id", p.ID, "status", string(p.Status))
			return domain.OutcomeNoop, nil
		}
		if err != nil {
			return "", err
		}
		return domain.OutcomeApplied, nil
	}
	return domain.OutcomeIgnored, nil
}

func (uc *PurchaseUseCase) seen(ctx context.Context, eventID string) bool {
	if uc.events == nil || eventID == "" {
		return false
	}
	ok, err := uc.events.IsProcessed(ctx, ProviderStripe, eventID)
	if err != nil {
		obs.Logger.Warn("event cache unavailable", "err", err)
		return false
	}
	return ok
}

func (uc *PurchaseUseCase) markSeen(ctx context.Context, eventID string) {
	if uc.events == nil || eventID == "" {
		return
	}
	if err := uc.events.MarkProcessed(ctx, ProviderStripe, eventID); err != nil {
		obs.Logger.Warn("event cache write failed", "err", err)
	}
}

func (uc *PurchaseUseCase) countReconcile(kind domain.PaymentEventKind, outcome string) {
	if uc.metrics != nil {
		uc.metrics.Reconciliations.WithLabelValues(kind.String(), outcome).Inc()
	}
}

func (uc *PurchaseUseCase) countRefund(reason string) {
	if uc.metrics != nil {
		uc.metrics.RefundsRequired.WithLabelValues(reason).Inc()
	}
}
