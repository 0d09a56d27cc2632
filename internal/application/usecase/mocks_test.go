package usecase

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/metrics"
	"gorm.io/gorm"
)

// MockGateway implements PaymentGateway for testing
type MockGateway struct {
	mu         sync.Mutex
	CreateFunc   func(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeIntent, error)
	RetrieveFunc func(ctx context.Context, mode domain.CheckoutMode, ref string) (*domain.ChargeIntent, error)
	CancelFunc   func(ctx context.Context, mode domain.CheckoutMode, ref string) error
	VerifyFunc   func(payload []byte, signature string) (*domain.PaymentEvent, error)

	Creates   []domain.ChargeRequest
	Retrieves []string
	Cancels   []string
}

func (m *MockGateway) CreateChargeIntent(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeIntent, error) {
	m.mu.Lock()
	m.Creates = append(m.Creates, req)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	// как у провайдера: один ключ идемпотентности - один intent
	return &domain.ChargeIntent{ProviderRef: "pi_" + req.PurchaseID, ClientHandle: "secret_" + req.PurchaseID}, nil
}

func (m *MockGateway) RetrieveChargeIntent(ctx context.Context, mode domain.CheckoutMode, ref string) (*domain.ChargeIntent, error) {
	m.mu.Lock()
	m.Retrieves = append(m.Retrieves, ref)
	m.mu.Unlock()
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, mode, ref)
	}
	return &domain.ChargeIntent{ProviderRef: ref, ClientHandle: "secret_" + strings.TrimPrefix(ref, "pi_")}, nil
}

func (m *MockGateway) CancelChargeIntent(ctx context.Context, mode domain.CheckoutMode, ref string) error {
	m.mu.Lock()
	m.Cancels = append(m.Cancels, ref)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, mode, ref)
	}
	return nil
}

func (m *MockGateway) VerifyCallback(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(payload, signature)
	}
	return nil, domain.ErrAuthentication
}

func (m *MockGateway) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Creates)
}

// MockIdentityVerifier implements IdentityVerifier for testing
type MockIdentityVerifier struct {
	VerifyFunc func(payload []byte, headers http.Header) (*domain.IdentityEvent, error)
}

func (m *MockIdentityVerifier) VerifyIdentityEvent(payload []byte, headers http.Header) (*domain.IdentityEvent, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(payload, headers)
	}
	return nil, domain.ErrAuthentication
}

// MockEventCache implements EventCache in memory
type MockEventCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *MockEventCache) MarkProcessed(ctx context.Context, provider, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	m.seen[provider+":"+eventID] = true
	return nil
}

func (m *MockEventCache) IsProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[provider+":"+eventID], nil
}

type testEnv struct {
	db          *gorm.DB
	users       *repository.UserRepository
	courses     *repository.CourseRepository
	purchases   *repository.PurchaseRepository
	enrollments *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	webhooks    *repository.WebhookEventRepository
	gateway     *MockGateway
	metrics     *metrics.Metrics
	purchase    *PurchaseUseCase
	catalog     *CatalogUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:          db,
		users:       repository.NewUserRepository(db),
		courses:     repository.NewCourseRepository(db),
		purchases:   repository.NewPurchaseRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
		progress:    repository.NewProgressRepository(db),
		webhooks:    repository.NewWebhookEventRepository(db),
		gateway:     &MockGateway{},
		metrics:     metrics.New(prometheus.NewRegistry()),
	}
	env.purchase = NewPurchaseUseCase(env.users, env.courses, env.purchases, env.enrollments, env.webhooks,
		env.gateway, nil, env.metrics, PurchaseOptions{
			Currency:    "usd",
			MaxAttempts: 3,
			Backoff:     time.Millisecond,
			Timeout:     time.Second,
		})
	env.catalog = NewCatalogUseCase(env.users, env.courses, env.enrollments, env.progress, "usd")
	return env
}

func (e *testEnv) addUser(t *testing.T, id string) {
	t.Helper()
	if err := e.users.Upsert(context.Background(), &domain.User{ID: id, Email: id + "@example.com", Name: id}); err != nil {
		t.Fatalf("add user: %v", err)
	}
}

func (e *testEnv) addCourse(t *testing.T, id, price, discount string) {
	t.Helper()
	err := e.courses.Save(context.Background(), &domain.Course{
		ID:          id,
		Title:       "Course " + id,
		Price:       decimal.RequireFromString(price),
		Discount:    decimal.RequireFromString(discount),
		IsPublished: true,
	})
	if err != nil {
		t.Fatalf("add course: %v", err)
	}
}

// pending создает Pending покупку напрямую, минуя провайдера.
func (e *testEnv) pending(t *testing.T, id, userID, courseID string) *domain.Purchase {
	t.Helper()
	p := &domain.Purchase{
		ID:           id,
		UserID:       userID,
		CourseID:     courseID,
		Amount:       decimal.RequireFromString("80.00"),
		Currency:     "usd",
		CheckoutMode: domain.CheckoutIntent,
	}
	if err := e.purchases.Create(context.Background(), p); err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	return p
}

func (e *testEnv) status(t *testing.T, id string) domain.PurchaseStatus {
	t.Helper()
	p, err := e.purchases.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	return p.Status
}

// rosters возвращает обе стороны записи: курсы юзера и студентов курса.
func (e *testEnv) rosters(t *testing.T, userID, courseID string) (courses, students []string) {
	t.Helper()
	ctx := context.Background()
	courses, err := e.enrollments.EnrolledCourseIDs(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	students, err = e.enrollments.EnrolledUserIDs(ctx, courseID)
	if err != nil {
		t.Fatal(err)
	}
	return courses, students
}

func succeeded(eventID, purchaseID string) *domain.PaymentEvent {
	return &domain.PaymentEvent{ID: eventID, Type: "payment_intent.succeeded", Kind: domain.PaymentSucceeded, PurchaseID: purchaseID, Payload: []byte(`{}`)}
}

func failed(eventID, purchaseID string) *domain.PaymentEvent {
	return &domain.PaymentEvent{ID: eventID, Type: "payment_intent.payment_failed", Kind: domain.PaymentFailed, PurchaseID: purchaseID, Payload: []byte(`{}`)}
}
