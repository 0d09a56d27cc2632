package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/identity"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/payment"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/metrics"
)

const (
	sessionSecret = "session-test-secret"
	stripeSecret  = "whsec_router_test"
)

var clerkSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("router-clerk-test-secret-1234"))

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	r           *gin.Engine
	users       *repository.UserRepository
	courses     *repository.CourseRepository
	purchases   *repository.PurchaseRepository
	enrollments *repository.EnrollmentRepository
	stripeDown  atomic.Bool
	stripeCalls atomic.Int32
}

// fakeStripe отвечает как API провайдера: id intent выводится из purchaseId в метаданных.
func (s *testServer) fakeStripe(w http.ResponseWriter, r *http.Request) {
	s.stripeCalls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if s.stripeDown.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
		return
	}
	_ = r.ParseForm()
	purchaseID := r.PostForm.Get("metadata[purchaseId]")
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payment_intents/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/")
		fmt.Fprintf(w, `{"id":%q,"object":"payment_intent","client_secret":"%s_secret","status":"requires_payment_method"}`, id, id)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/checkout/sessions/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/checkout/sessions/")
		fmt.Fprintf(w, `{"id":%q,"object":"checkout.session","url":"https://checkout.example.com/%s","status":"open"}`, id, id)
	case r.URL.Path == "/v1/payment_intents":
		fmt.Fprintf(w, `{"id":"pi_%s","object":"payment_intent","client_secret":"pi_%s_secret"}`, purchaseID, purchaseID)
	case r.URL.Path == "/v1/checkout/sessions":
		fmt.Fprintf(w, `{"id":"cs_%s","object":"checkout.session","url":"https://checkout.example.com/cs_%s"}`, purchaseID, purchaseID)
	case strings.HasSuffix(r.URL.Path, "/cancel"):
		fmt.Fprint(w, `{"id":"pi_x","object":"payment_intent","status":"canceled"}`)
	case strings.HasSuffix(r.URL.Path, "/expire"):
		fmt.Fprint(w, `{"id":"cs_x","object":"checkout.session","status":"expired"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"unknown path"}}`)
	}
}

func newTestServer(t *testing.T) *testServer {
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

	s := &testServer{
		users:       repository.NewUserRepository(db),
		courses:     repository.NewCourseRepository(db),
		purchases:   repository.NewPurchaseRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
	}
	progress := repository.NewProgressRepository(db)
	webhooks := repository.NewWebhookEventRepository(db)

	srv := httptest.NewServer(http.HandlerFunc(s.fakeStripe))
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: stripeSecret,
		FrontendURL:   "https://front.example.com",
		Backends:      &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	})
	sessions, err := identity.NewSessionVerifier(sessionSecret, "")
	if err != nil {
		t.Fatal(err)
	}
	clerk, err := identity.NewWebhookVerifier(clerkSecret)
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.New(prometheus.NewRegistry())
	purchaseUC := usecase.NewPurchaseUseCase(s.users, s.courses, s.purchases, s.enrollments, webhooks, gateway, nil, m,
		usecase.PurchaseOptions{Currency: "usd", MaxAttempts: 2, Backoff: time.Millisecond, Timeout: 2 * time.Second})
	catalog := usecase.NewCatalogUseCase(s.users, s.courses, s.enrollments, progress, "usd")

	s.r = NewRouter(RouterConfig{Sessions: sessions, Metrics: m}, Handlers{
		Purchase: NewPurchaseHandler(purchaseUC),
		Progress: NewProgressHandler(usecase.NewProgressUseCase(progress, s.enrollments, true)),
		User:     NewUserHandler(catalog),
		Course:   NewCourseHandler(catalog),
		Webhook:  NewWebhookHandler(purchaseUC, usecase.NewIdentityUseCase(s.users, webhooks, clerk, nil)),
	})
	return s
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := s.users.Upsert(ctx, &domain.User{ID: "user_1", Email: "u1@example.com", Name: "User One"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []domain.Course{
		{ID: "c1", Title: "Go", Price: decimal.NewFromInt(100), Discount: decimal.NewFromInt(20), IsPublished: true},
		{ID: "free", Title: "Intro", Price: decimal.Zero, Discount: decimal.Zero, IsPublished: true},
		{ID: "draft", Title: "Draft", Price: decimal.NewFromInt(10), Discount: decimal.Zero, IsPublished: false},
	} {
		c := c
		if err := s.courses.Save(ctx, &c); err != nil {
			t.Fatal(err)
		}
	}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(sessionSecret))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, userID string, body []byte, headers http.Header) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: bad json %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func stripeEvent(t *testing.T, id, typ, purchaseID string) ([]byte, http.Header) {
	t.Helper()
	payload := fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":"pi_%s","object":"payment_intent","metadata":{"purchaseId":%q}}}}`,
		id, typ, purchaseID, purchaseID)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set("Stripe-Signature", sp.Header)
	return sp.Payload, h
}

func TestPurchaseFlowEndToEnd(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	code, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("create intent: %d %v", code, body)
	}
	purchaseID, _ := body["purchaseId"].(string)
	if purchaseID == "" || body["clientSecret"] != "pi_"+purchaseID+"_secret" {
		t.Fatalf("unexpected intent response: %v", body)
	}

	code, body = s.do(t, http.MethodGet, "/api/user/purchases/"+purchaseID, "user_1", nil, nil)
	purchase, _ := body["purchase"].(map[string]any)
	if code != http.StatusOK || purchase["status"] != "Pending" || purchase["amount"] != "80.00" {
		t.Fatalf("expected pending purchase of 80.00: %d %v", code, body)
	}

	payload, headers := stripeEvent(t, "evt_1", "payment_intent.succeeded", purchaseID)
	code, body = s.do(t, http.MethodPost, "/stripe", "", payload, headers)
	if code != http.StatusOK || body["received"] != true || body["outcome"] != domain.OutcomeApplied {
		t.Fatalf("webhook: %d %v", code, body)
	}

	// повторная доставка того же события - успех без изменений
	code, body = s.do(t, http.MethodPost, "/stripe", "", payload, headers)
	if code != http.StatusOK || body["outcome"] != domain.OutcomeNoop {
		t.Fatalf("redelivery: %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/user/purchases/"+purchaseID, "user_1", nil, nil)
	purchase, _ = body["purchase"].(map[string]any)
	if purchase["status"] != "Completed" {
		t.Fatalf("expected Completed, got %v", body)
	}

	code, body = s.do(t, http.MethodGet, "/api/user/enrolled-courses", "user_1", nil, nil)
	courses, _ := body["enrolledCourses"].([]any)
	if code != http.StatusOK || len(courses) != 1 {
		t.Fatalf("expected one enrolled course: %d %v", code, body)
	}
	if c := courses[0].(map[string]any); c["id"] != "c1" || c["finalPrice"] != "80.00" {
		t.Fatalf("unexpected enrolled course: %v", c)
	}

	code, body = s.do(t, http.MethodGet, "/api/user/data", "user_1", nil, nil)
	user, _ := body["user"].(map[string]any)
	if enrolled, _ := user["enrolledCourses"].([]any); code != http.StatusOK || len(enrolled) != 1 || enrolled[0] != "c1" {
		t.Fatalf("user data: %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	if code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("second purchase of an owned course must be rejected: %d %v", code, body)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	_, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	purchaseID := body["purchaseId"].(string)

	payload, _ := stripeEvent(t, "evt_forged", "payment_intent.succeeded", purchaseID)
	h := http.Header{}
	h.Set("Stripe-Signature", "t=1,v1=deadbeef")
	code, body := s.do(t, http.MethodPost, "/stripe", "", payload, h)
	if code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("expected 400, got %d %v", code, body)
	}

	p, err := s.purchases.Get(context.Background(), purchaseID)
	if err != nil || p.Status != domain.PurchasePending {
		t.Fatalf("purchase must stay Pending: %+v %v", p, err)
	}
	if ok, _ := s.enrollments.IsEnrolled(context.Background(), "user_1", "c1"); ok {
		t.Fatalf("forged event must not enroll")
	}
}

func TestSessionCheckoutAndFailure(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	h := http.Header{}
	h.Set("Origin", "https://shop.example.com")
	code, body := s.do(t, http.MethodPost, "/api/user/purchase", "user_1", []byte(`{"courseId":"c1"}`), h)
	purchaseID, _ := body["purchaseId"].(string)
	if code != http.StatusOK || body["sessionUrl"] != "https://checkout.example.com/cs_"+purchaseID {
		t.Fatalf("session checkout: %d %v", code, body)
	}

	payload, headers := stripeEvent(t, "evt_fail", "payment_intent.payment_failed", purchaseID)
	if code, body := s.do(t, http.MethodPost, "/stripe", "", payload, headers); code != http.StatusOK {
		t.Fatalf("failure webhook: %d %v", code, body)
	}
	if p, _ := s.purchases.Get(context.Background(), purchaseID); p.Status != domain.PurchaseFailed {
		t.Fatalf("expected Failed, got %s", p.Status)
	}
	if ok, _ := s.enrollments.IsEnrolled(context.Background(), "user_1", "c1"); ok {
		t.Fatalf("failed payment must not enroll")
	}
}

func TestSwitchingCheckoutModeKeepsOneLivePurchase(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	ctx := context.Background()

	_, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	first, _ := body["purchaseId"].(string)
	code, body := s.do(t, http.MethodPost, "/api/user/purchase", "user_1", []byte(`{"courseId":"c1"}`), nil)
	second, _ := body["purchaseId"].(string)
	if code != http.StatusOK || second == "" || second == first {
		t.Fatalf("session checkout: %d %v", code, body)
	}
	if p, _ := s.purchases.Get(ctx, first); p.Status != domain.PurchaseFailed {
		t.Fatalf("abandoned intent purchase should be Failed, got %s", p.Status)
	}

	// клиент успел оплатить оба: записывается только живая покупка
	outcomes := map[string]any{}
	for i, id := range []string{second, first} {
		payload, headers := stripeEvent(t, fmt.Sprintf("evt_%d", i), "payment_intent.succeeded", id)
		code, body := s.do(t, http.MethodPost, "/stripe", "", payload, headers)
		if code != http.StatusOK {
			t.Fatalf("webhook for %s: %d %v", id, code, body)
		}
		outcomes[id] = body["outcome"]
	}
	if outcomes[second] != domain.OutcomeApplied || outcomes[first] != domain.OutcomeNoop {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	if p, _ := s.purchases.Get(ctx, first); p.Status != domain.PurchaseFailed {
		t.Fatalf("abandoned purchase must stay Failed, got %s", p.Status)
	}
}

func TestRepeatedCheckoutReusesProviderIntent(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	_, first := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	_, second := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	if first["purchaseId"] != second["purchaseId"] || first["clientSecret"] != second["clientSecret"] {
		t.Fatalf("expected the same purchase and secret: %v vs %v", first, second)
	}
	// create + retrieve, без второго create под тем же ключом
	if got := s.stripeCalls.Load(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestWebhookBodyLimit(t *testing.T) {
	s := newTestServer(t)

	big := bytes.Repeat([]byte("a"), maxWebhookBody+1)
	for _, path := range []string{"/stripe", "/clerk"} {
		code, body := s.do(t, http.MethodPost, path, "", big, nil)
		if code != http.StatusRequestEntityTooLarge || body["success"] != false {
			t.Fatalf("%s: expected 413, got %d %v", path, code, body)
		}
	}
}

func TestPurchaseErrors(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	tests := []struct {
		name   string
		user   string
		body   string
		status int
	}{
		{"no session", "", `{"courseId":"c1"}`, http.StatusUnauthorized},
		{"missing course id", "user_1", `{}`, http.StatusBadRequest},
		{"malformed body", "user_1", `{"courseId":`, http.StatusBadRequest},
		{"unknown course", "user_1", `{"courseId":"nope"}`, http.StatusNotFound},
		{"unpublished course", "user_1", `{"courseId":"draft"}`, http.StatusBadRequest},
		{"unknown user", "ghost", `{"courseId":"c1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", tt.user, []byte(tt.body), nil)
			if code != tt.status || body["success"] != false {
				t.Fatalf("got %d %v, want %d", code, body, tt.status)
			}
		})
	}
}

func TestProviderOutageIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	s.stripeDown.Store(true)

	code, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	if code != http.StatusBadGateway || body["success"] != false {
		t.Fatalf("expected 502, got %d %v", code, body)
	}
	if got := s.stripeCalls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if ok, _ := s.enrollments.IsEnrolled(context.Background(), "user_1", "c1"); ok {
		t.Fatalf("outage must not enroll")
	}
}

func TestFreeCourseEnrollsImmediately(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	code, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"free"}`), nil)
	if code != http.StatusOK || body["clientSecret"] != nil || body["purchaseId"] == "" {
		t.Fatalf("free course: %d %v", code, body)
	}
	if s.stripeCalls.Load() != 0 {
		t.Fatalf("free course must not reach the provider")
	}
	if ok, _ := s.enrollments.IsEnrolled(context.Background(), "user_1", "free"); !ok {
		t.Fatalf("expected enrollment")
	}
}

func TestCancelPurchase(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	_, body := s.do(t, http.MethodPost, "/api/user/create-payment-intent", "user_1", []byte(`{"courseId":"c1"}`), nil)
	purchaseID := body["purchaseId"].(string)

	code, body := s.do(t, http.MethodPost, "/api/user/purchases/"+purchaseID+"/cancel", "user_1", nil, nil)
	purchase, _ := body["purchase"].(map[string]any)
	if code != http.StatusOK || purchase["status"] != "Failed" {
		t.Fatalf("cancel: %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/user/purchases/"+purchaseID+"/cancel", "user_1", nil, nil)
	if code != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", code)
	}

	if err := s.users.Upsert(context.Background(), &domain.User{ID: "user_2", Email: "u2@example.com"}); err != nil {
		t.Fatal(err)
	}
	code, _ = s.do(t, http.MethodGet, "/api/user/purchases/"+purchaseID, "user_2", nil, nil)
	if code != http.StatusNotFound {
		t.Fatalf("foreign purchase must look missing, got %d", code)
	}
}

func TestProgressEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	progress := []byte(`{"courseId":"c1","lectureId":"l1"}`)
	code, body := s.do(t, http.MethodPost, "/api/user/add-progress", "user_1", progress, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("progress without enrollment: %d %v", code, body)
	}

	if _, err := s.enrollments.Enroll(context.Background(), "user_1", "c1", ""); err != nil {
		t.Fatal(err)
	}

	code, body = s.do(t, http.MethodGet, "/api/user/get-progress/c1", "user_1", nil, nil)
	data, _ := body["progressData"].(map[string]any)
	if lectures, ok := data["completedLectures"].([]any); code != http.StatusOK || !ok || len(lectures) != 0 {
		t.Fatalf("empty progress must be an empty list: %d %v", code, body)
	}

	_, body = s.do(t, http.MethodPost, "/api/user/add-progress", "user_1", progress, nil)
	if body["message"] != "Progress Updated" {
		t.Fatalf("first completion: %v", body)
	}
	_, body = s.do(t, http.MethodPost, "/api/user/add-progress", "user_1", progress, nil)
	if body["success"] != true || body["message"] != "Lecture already completed" {
		t.Fatalf("repeat completion: %v", body)
	}

	_, body = s.do(t, http.MethodGet, "/api/user/get-progress/c1", "user_1", nil, nil)
	data, _ = body["progressData"].(map[string]any)
	if lectures, _ := data["completedLectures"].([]any); len(lectures) != 1 || lectures[0] != "l1" {
		t.Fatalf("unexpected progress: %v", body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/user/add-progress", "user_1", []byte(`{"courseId":"c1"}`), nil)
	if code != http.StatusBadRequest {
		t.Fatalf("missing lecture id: expected 400, got %d", code)
	}
}

func TestCourseEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	code, body := s.do(t, http.MethodGet, "/api/course/all", "", nil, nil)
	courses, _ := body["courses"].([]any)
	if code != http.StatusOK || len(courses) != 2 {
		t.Fatalf("expected two published courses: %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/course/c1", "", nil, nil)
	course, _ := body["courseData"].(map[string]any)
	if code != http.StatusOK || course["price"] != "100.00" || course["finalPrice"] != "80.00" {
		t.Fatalf("course detail: %d %v", code, body)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/course/draft", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unpublished course must be hidden, got %d", code)
	}
}

func clerkHeaders(t *testing.T, msgID string, payload []byte) http.Header {
	t.Helper()
	wh, err := svix.NewWebhook(clerkSecret)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	sig, err := wh.Sign(msgID, now, payload)
	if err != nil {
		t.Fatal(err)
	}
	h := http.Header{}
	h.Set("svix-id", msgID)
	h.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	h.Set("svix-signature", sig)
	return h
}

func TestClerkWebhook(t *testing.T) {
	s := newTestServer(t)

	payload := []byte(`{"type":"user.created","data":{"id":"user_9","first_name":"Grace","last_name":"Hopper",
		"primary_email_address_id":"e1","email_addresses":[{"id":"e1","email_address":"grace@example.com"}]}}`)
	code, body := s.do(t, http.MethodPost, "/clerk", "", payload, clerkHeaders(t, "msg_1", payload))
	if code != http.StatusOK || body["received"] != true {
		t.Fatalf("clerk webhook: %d %v", code, body)
	}
	u, err := s.users.GetByID(context.Background(), "user_9")
	if err != nil || u.Email != "grace@example.com" {
		t.Fatalf("user not created: %+v %v", u, err)
	}

	bad := clerkHeaders(t, "msg_2", payload)
	bad.Set("svix-signature", "v1,Zm9yZ2Vk")
	if code, _ := s.do(t, http.MethodPost, "/clerk", "", payload, bad); code != http.StatusBadRequest {
		t.Fatalf("forged identity event: expected 400, got %d", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/health", "", nil, nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", code, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "coursemarket_http_requests_total") {
		t.Fatalf("metrics: %d %s", w.Code, w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrCourseIDRequired, http.StatusBadRequest},
		{domain.ErrAuthentication, http.StatusUnauthorized},
		{domain.ErrPurchaseNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: purchase is Completed", domain.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("%w: timeout", domain.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("%w: card declined", domain.ErrPaymentRejected), http.StatusBadRequest},
		{domain.ErrPaymentInProgress, http.StatusConflict},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
