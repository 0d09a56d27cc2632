package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/metrics"
	"github.com/waste3d/coursemarket-api/internal/obs"
	"github.com/waste3d/coursemarket-api/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseOptions struct {
	Currency string
	// Вызов провайдера: MaxAttempts попыток, пауза Backoff удваивается, каждая попытка ограничена Timeout
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

type PurchaseUseCase struct {
	users         *repository.UserRepository
	courses       *repository.CourseRepository
	purchases     *repository.PurchaseRepository
	enrollments   *repository.EnrollmentRepository
	webhookEvents *repository.WebhookEventRepository
	gateway       PaymentGateway
	events        EventCache
	metrics       *metrics.Metrics
	opts          PurchaseOptions
}

func NewPurchaseUseCase(
	ur *repository.UserRepository,
	cr *repository.CourseRepository,
	pr *repository.PurchaseRepository,
	er *repository.EnrollmentRepository,
	wr *repository.WebhookEventRepository,
	gw PaymentGateway,
	ec EventCache,
	m *metrics.Metrics,
	opts PurchaseOptions,
) *PurchaseUseCase {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	opts.Currency = strings.ToLower(opts.Currency)
	return &PurchaseUseCase{
		users:         ur,
		courses:       cr,
		purchases:     pr,
		enrollments:   er,
		webhookEvents: wr,
		gateway:       gw,
		events:        ec,
		metrics:       m,
		opts:          opts,
	}
}

type BeginResult struct {
	PurchaseID   string
	ClientHandle string // пусто для бесплатного курса
	Free         bool
	Reused       bool
}

// BeginPurchase создает (или переиспользует) Pending покупку и запрашивает у провайдера
// платеж. Pending запись коммитится до вызова провайдера.
func (uc *PurchaseUseCase) BeginPurchase(ctx context.Context, userID, courseID string, mode domain.CheckoutMode, origin string) (*BeginResult, error) {
	res, err := uc.beginPurchase(ctx, userID, strings.TrimSpace(courseID), mode, origin)
	uc.countPurchase(mode, res, err)
	return res, err
}

func (uc *PurchaseUseCase) beginPurchase(ctx context.Context, userID, courseID string, mode domain.CheckoutMode, origin string) (*BeginResult, error) {
	if courseID == "" {
		return nil, domain.ErrCourseIDRequired
	}
	if _, err := domain.ParseCheckoutMode(string(mode)); err != nil {
		return nil, err
	}

	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	course, err := uc.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, domain.ErrCourseNotAvailable
	}

	enrolled, err := uc.enrollments.IsEnrolled(ctx, user.ID, course.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, domain.ErrAlreadyEnrolled
	}

	amount, err := pricing.Charge(course.Price, course.Discount, uc.opts.Currency)
	if err != nil {
		return nil, err
	}

	p, intent, reused, err := uc.acquirePending(ctx, user.ID, course.ID, mode, amount, origin)
	if err != nil {
		return nil, err
	}

	// Бесплатный курс: провайдер не нужен, сразу Completed + запись на курс
	if amount.IsZero() {
		if _, err := uc.enrollments.CompletePurchase(ctx, p.ID); err != nil {
			return nil, err
		}
		obs.Logger.Info("free course enrollment", "purchase_id", p.ID, "user_id", user.ID, "course_id", course.ID)
		return &BeginResult{PurchaseID: p.ID, Free: true, Reused: reused}, nil
	}

	if intent == nil {
		// URL возврата берем из покупки: повтор с тем же ключом идемпотентности должен слать те же параметры
		req := domain.ChargeRequest{
			PurchaseID:    p.ID,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Mode:          p.CheckoutMode,
			CourseTitle:   course.Title,
			CustomerEmail: user.Email,
			Origin:        p.Origin,
		}
		intent, err = uc.callProvider(ctx, p.ID, func(ctx context.Context) (*domain.ChargeIntent, error) {
			return uc.gateway.CreateChargeIntent(ctx, req)
		})
		if err != nil {
			// покупка остается Pending: ее закроет вебхук, отмена или следующая попытка
			obs.Logger.Error("charge intent failed", "purchase_id", p.ID, "err", err)
			return nil, err
		}
	}

	if intent.ProviderRef != p.ProviderRef {
		if err := uc.purchases.AttachProviderRef(ctx, p.ID, intent.ProviderRef); err != nil {
			if !errors.Is(err, domain.ErrInvalidTransition) {
				return nil, err
			}
			// пока мы ходили к провайдеру, покупку оплатили или закрыли
			err = uc.terminalOutcome(ctx, p.ID)
			if !errors.Is(err, domain.ErrAlreadyEnrolled) {
				if cerr := uc.gateway.CancelChargeIntent(ctx, p.CheckoutMode, intent.ProviderRef); cerr != nil {
					obs.Logger.Warn("orphaned charge intent cancel failed", "purchase_id", p.ID, "provider_ref", intent.ProviderRef, "err", cerr)
				}
			}
			return nil, err
		}
	}

	obs.Logger.Info("purchase started",
		"purchase_id", p.ID,
		"user_id", user.ID,
		"course_id", course.ID,
		"mode", string(mode),
		"amount", pricing.Format(p.Amount, p.Currency),
		"reused", reused,
	)
	return &BeginResult{PurchaseID: p.ID, ClientHandle: intent.ClientHandle, Reused: reused}, nil
}

// Сколько раз пробуем создать покупку, проигрывая гонку параллельным запросам.
const pendingAttempts = 3

// acquirePending находит или создает единственную Pending покупку для (user, course).
// intent не nil, если покупка переиспользована и ее intent у провайдера еще открыт.
func (uc *PurchaseUseCase) acquirePending(ctx context.Context, userID, courseID string, mode domain.CheckoutMode, amount decimal.Decimal, origin string) (*domain.Purchase, *domain.ChargeIntent, bool, error) {
	for attempt := 1; ; attempt++ {
		p, intent, err := uc.reusablePending(ctx, userID, courseID, mode, amount)
		if err != nil {
			return nil, nil, false, err
		}
		if p != nil {
			return p, intent, true, nil
		}

		p = &domain.Purchase{
			ID:           uuid.NewString(),
			UserID:       userID,
			CourseID:     courseID,
			Amount:       amount,
			Currency:     uc.opts.Currency,
			CheckoutMode: mode,
			Origin:       origin,
		}
		err = uc.purchases.Create(ctx, p)
		if err == nil {
			return p, nil, false, nil
		}
		if !errors.Is(err, domain.ErrPendingExists) || attempt == pendingAttempts {
			return nil, nil, false, err
		}
		// параллельный запрос успел создать свою покупку, работаем с ней
		obs.Logger.Debug("pending purchase race lost", "user_id", userID, "course_id", courseID, "attempt", attempt)
	}
}

// reusablePending: на пару (user, course) живет одна Pending покупка. Она переиспользуется,
// если совпадают способ оплаты и сумма, а intent у провайдера еще можно оплатить. Иначе
// покупка отменяется у провайдера и уходит в Failed. Если провайдер отмену не принял,
// новую покупку не создаем.
func (uc *PurchaseUseCase) reusablePending(ctx context.Context, userID, courseID string, mode domain.CheckoutMode, amount decimal.Decimal) (*domain.Purchase, *domain.ChargeIntent, error) {
	for {
		p, err := uc.purchases.FindPending(ctx, userID, courseID)
		if errors.Is(err, domain.ErrPurchaseNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}

		if p.CheckoutMode == mode && p.Amount.Equal(amount) && p.Currency == uc.opts.Currency {
			if p.ProviderRef == "" {
				// провайдер еще не ответил: тот же ключ идемпотентности вернет тот же intent
				return p, nil, nil
			}
			intent, err := uc.callProvider(ctx, p.ID, func(ctx context.Context) (*domain.ChargeIntent, error) {
				return uc.gateway.RetrieveChargeIntent(ctx, p.CheckoutMode, p.ProviderRef)
			})
			if err != nil {
				return nil, nil, err
			}
			switch intent.State {
			case domain.IntentOpen:
				return p, intent, nil
			case domain.IntentPaid:
				return nil, nil, domain.ErrPaymentInProgress
			}
			if err := uc.closePending(ctx, p.ID); err != nil {
				return nil, nil, err
			}
			obs.Logger.Info("expired purchase closed", "purchase_id", p.ID, "provider_ref", p.ProviderRef)
			continue
		}

		if err := uc.gateway.CancelChargeIntent(ctx, p.CheckoutMode, p.ProviderRef); err != nil {
			obs.Logger.Warn("stale purchase cancel refused", "purchase_id", p.ID, "err", err)
			return nil, nil, err
		}
		if err := uc.closePending(ctx, p.ID); err != nil {
			return nil, nil, err
		}
		obs.Logger.Info("stale purchase superseded",
			"purchase_id", p.ID,
			"old_mode", string(p.CheckoutMode),
			"new_mode", string(mode),
			"old_amount", p.Amount.String(),
			"new_amount", amount.String(),
		)
	}
}

// closePending переводит покупку в Failed. Если ее успели оплатить - ErrAlreadyEnrolled.
func (uc *PurchaseUseCase) closePending(ctx context.Context, purchaseID string) error {
	err := uc.purchases.SetStatus(ctx, purchaseID, domain.PurchaseFailed)
	if err == nil || !errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	if err := uc.terminalOutcome(ctx, purchaseID); errors.Is(err, domain.ErrAlreadyEnrolled) {
		return err
	}
	return nil
}

// terminalOutcome объясняет, почему покупка ушла из Pending у нас из-под рук.
func (uc *PurchaseUseCase) terminalOutcome(ctx context.Context, purchaseID string) error {
	p, err := uc.purchases.Get(ctx, purchaseID)
	if err != nil {
		return err
	}
	if p.Status == domain.PurchaseCompleted {
		return domain.ErrAlreadyEnrolled
	}
	return fmt.Errorf("%w: purchase %s is %s", domain.ErrInvalidTransition, p.ID, p.Status)
}

// callProvider повторяет вызов провайдера при ErrUpstream и таймаутах. Отказ по существу
// запроса (ErrPaymentRejected) не повторяется.
func (uc *PurchaseUseCase) callProvider(ctx context.Context, purchaseID string, call func(context.Context) (*domain.ChargeIntent, error)) (*domain.ChargeIntent, error) {
	backoff := uc.opts.Backoff
	var lastErr error
	for attempt := 1; attempt <= uc.opts.MaxAttempts; attempt++ {
		intent, err := uc.providerAttempt(ctx, call)
		if err == nil {
			return intent, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		if attempt == uc.opts.MaxAttempts {
			break
		}
		obs.Logger.Warn("payment provider attempt failed",
			"purchase_id", purchaseID, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if errors.Is(lastErr, domain.ErrUpstream) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, lastErr)
}

func (uc *PurchaseUseCase) providerAttempt(ctx context.Context, call func(context.Context) (*domain.ChargeIntent, error)) (*domain.ChargeIntent, error) {
	if uc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
	}
	return call(ctx)
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrUpstream) || errors.Is(err, context.DeadlineExceeded)
}

// GetPurchase отдает покупку только владельцу, чужая выглядит как несуществующая.
func (uc *PurchaseUseCase) GetPurchase(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error) {
	p, err := uc.purchases.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrPurchaseNotFound
	}
	return p, nil
}

// CancelPurchase: сначала отмена у провайдера, потом Pending -> Failed.
// Если провайдер отказал (например, уже оплачено), покупка остается Pending до вебхука.
func (uc *PurchaseUseCase) CancelPurchase(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error) {
	p, err := uc.GetPurchase(ctx, userID, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PurchasePending {
		return nil, fmt.Errorf("%w: purchase is %s", domain.ErrInvalidTransition, p.Status)
	}

	if err := uc.gateway.CancelChargeIntent(ctx, p.CheckoutMode, p.ProviderRef); err != nil {
		obs.Logger.Warn("purchase cancel refused by provider", "purchase_id", p.ID, "err", err)
		return nil, err
	}
	if err := uc.purchases.SetStatus(ctx, p.ID, domain.PurchaseFailed); err != nil {
		return nil, err
	}
	obs.Logger.Info("purchase cancelled", "purchase_id", p.ID, "user_id", userID)
	return uc.purchases.Get(ctx, p.ID)
}

func (uc *PurchaseUseCase) countPurchase(mode domain.CheckoutMode, res *BeginResult, err error) {
	if uc.metrics == nil {
		return
	}
	outcome := "created"
	switch {
	case err != nil && errors.Is(err, domain.ErrUpstream):
		outcome = "upstream_error"
	case err != nil:
		outcome = "rejected"
	case res.Free:
		outcome = "free"
	case res.Reused:
		outcome = "reused"
	}
	uc.metrics.Purchases.WithLabelValues(string(mode), outcome).Inc()
}
