package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	billingdomain "github.com/janmager/myfreelance-backend/internal/billing/domain"
	"github.com/janmager/myfreelance-backend/internal/config"
	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
	subscriptiondomain "github.com/janmager/myfreelance-backend/internal/subscription/domain"
	usagedomain "github.com/janmager/myfreelance-backend/internal/usage/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type fakeEntitlementSvc struct {
	result     *entitlementdomain.CheckResult
	fileResult *entitlementdomain.FileCheckResult
	limits     []entitlementdomain.Limit
	updated    []entitlementdomain.Limit
	err        error
}

func (f *fakeEntitlementSvc) CheckResource(ctx context.Context, userID string, kind entitlementdomain.ResourceKind) (*entitlementdomain.CheckResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEntitlementSvc) CheckFileUpload(ctx context.Context, userID string, fileSizeBytes int64) (*entitlementdomain.FileCheckResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fileResult, nil
}

func (f *fakeEntitlementSvc) ListLimits(ctx context.Context) ([]entitlementdomain.Limit, error) {
	return f.limits, f.err
}

func (f *fakeEntitlementSvc) UpdateLimits(ctx context.Context, updates []entitlementdomain.Limit) error {
	if f.err != nil {
		return f.err
	}
	f.updated = updates
	return nil
}

type fakeUsageSvc struct {
	overview   *usagedomain.Overview
	adminStats *usagedomain.AdminStats
	err        error
}

func (f *fakeUsageSvc) Overview(ctx context.Context, userID string) (*usagedomain.Overview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.overview, nil
}

func (f *fakeUsageSvc) AdminStats(ctx context.Context) (*usagedomain.AdminStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.adminStats, nil
}

type fakeSubscriptionSvc struct {
	checkout *subscriptiondomain.CheckoutResponse
	info     *subscriptiondomain.Info
	status   *subscriptiondomain.PremiumStatus
	mgmt     *subscriptiondomain.ManagementInfo
	err      error
}

func (f *fakeSubscriptionSvc) Checkout(ctx context.Context, userID, productName, provider string) (*subscriptiondomain.CheckoutResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.checkout, nil
}

func (f *fakeSubscriptionSvc) Cancel(ctx context.Context, userID, subscriptionID string) error {
	return f.err
}

func (f *fakeSubscriptionSvc) Resume(ctx context.Context, userID, subscriptionID string) error {
	return f.err
}

func (f *fakeSubscriptionSvc) GetSubscription(ctx context.Context, userID string) (*subscriptiondomain.Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *fakeSubscriptionSvc) PremiumStatus(ctx context.Context, userID string) (*subscriptiondomain.PremiumStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakeSubscriptionSvc) ManagementInfo(ctx context.Context, userID string) (*subscriptiondomain.ManagementInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mgmt, nil
}

type fakeWebhookReconciler struct {
	err      error
	provider string
	payload  []byte
}

func (f *fakeWebhookReconciler) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error {
	f.provider = provider
	f.payload = payload
	return f.err
}

func (f *fakeWebhookReconciler) ReconcileWithProviders(ctx context.Context) (int, error) {
	return 0, nil
}

type fakeUserRepo struct {
	users map[string]*userdomain.User
}

func (f *fakeUserRepo) FindByID(ctx context.Context, db *gorm.DB, userID string) (*userdomain.User, error) {
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	return nil, userdomain.ErrUserNotFound
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*userdomain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, userdomain.ErrUserNotFound
}

func (f *fakeUserRepo) SetPremiumLevel(ctx context.Context, db *gorm.DB, userID string, level int, now time.Time) error {
	return nil
}

type serverFixture struct {
	srv         *Server
	entitlement *fakeEntitlementSvc
	usage       *fakeUsageSvc
	subs        *fakeSubscriptionSvc
	reconciler  *fakeWebhookReconciler
	users       *fakeUserRepo
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	fixture := &serverFixture{
		entitlement: &fakeEntitlementSvc{},
		usage:       &fakeUsageSvc{},
		subs:        &fakeSubscriptionSvc{},
		reconciler:  &fakeWebhookReconciler{},
		users:       &fakeUserRepo{users: map[string]*userdomain.User{}},
	}
	fixture.srv = &Server{
		engine:          engine,
		cfg:             config.Config{BillingProvider: config.ProviderStripe},
		log:             zaptest.NewLogger(t),
		catalog:         config.NewStaticCatalog([]config.Product{{Name: "premium", PremiumLevel: 1}}),
		entitlementSvc:  fixture.entitlement,
		usageSvc:        fixture.usage,
		subscriptionSvc: fixture.subs,
		reconciler:      fixture.reconciler,
		userRepo:        fixture.users,
	}
	fixture.srv.registerAPIRoutes()
	fixture.srv.registerAdminRoutes()
	return fixture
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(w, req)
	return w
}

func TestCheckResourceLimitRoute(t *testing.T) {
	f := newTestServer(t)
	f.entitlement.result = &entitlementdomain.CheckResult{
		Allowed:      true,
		CurrentCount: 2,
		Limit:        3,
		PremiumLevel: 0,
	}

	w := f.do(t, http.MethodPost, "/api/limits/check-clients", gin.H{"user_id": "user-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["can_add"])
	assert.EqualValues(t, 2, resp["current_count"])
	assert.EqualValues(t, 3, resp["limit"])
}

func TestCheckResourceLimitRequiresUserID(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodPost, "/api/limits/check-projects", gin.H{}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestCheckFileSizeRoute(t *testing.T) {
	f := newTestServer(t)
	f.entitlement.fileResult = &entitlementdomain.FileCheckResult{
		Allowed:      true,
		CurrentMB:    10.5,
		CandidateMB:  2,
		TotalAfterMB: 12.5,
		LimitMB:      20,
	}

	w := f.do(t, http.MethodPost, "/api/limits/check-file-size", gin.H{"user_id": "user-1", "file_size": 2097152}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["can_upload"])
	assert.EqualValues(t, 12.5, resp["total_after_upload_mb"])
}

func TestMissingLimitRowMapsToInternalError(t *testing.T) {
	f := newTestServer(t)
	f.entitlement.err = entitlementdomain.ErrLimitNotConfigured

	w := f.do(t, http.MethodPost, "/api/limits/check-notes", gin.H{"user_id": "user-1"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnknownResourcePathNotRegistered(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodPost, "/api/limits/check-invoices", gin.H{"user_id": "user-1"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsageRoute(t *testing.T) {
	f := newTestServer(t)
	f.usage.overview = &usagedomain.Overview{PremiumLevel: 1}
	f.usage.overview.Stats.Clients = usagedomain.ResourceStat{Total: 2, Used: 2, Limit: 50}

	w := f.do(t, http.MethodPost, "/api/usage", gin.H{"user_id": "user-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["premium_level"])
	stats, ok := resp["stats"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, stats, "clients")
	assert.Contains(t, stats, "files")
}

func TestUsageRouteUnknownUser(t *testing.T) {
	f := newTestServer(t)
	f.usage.err = userdomain.ErrUserNotFound

	w := f.do(t, http.MethodPost, "/api/usage", gin.H{"user_id": "nobody"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookInfersProviderFromHeader(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodPost, "/api/subscription/webhook", gin.H{"id": "evt_1"},
		map[string]string{"X-Signature": "abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.ProviderLemonSqueezy, f.reconciler.provider)

	w = f.do(t, http.MethodPost, "/api/subscription/webhook", gin.H{"id": "evt_2"},
		map[string]string{"Stripe-Signature": "t=1,v1=abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.ProviderStripe, f.reconciler.provider)
}

func TestWebhookProviderPath(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodPost, "/api/subscription/webhook/lemonsqueezy", gin.H{"id": "evt_1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lemonsqueezy", f.reconciler.provider)
}

func TestWebhookSignatureRejected(t *testing.T) {
	f := newTestServer(t)
	f.reconciler.err = billingdomain.ErrInvalidSignature

	w := f.do(t, http.MethodPost, "/api/subscription/webhook", gin.H{"id": "evt_1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookStoreFailureIsRetryable(t *testing.T) {
	f := newTestServer(t)
	f.reconciler.err = gorm.ErrInvalidDB

	w := f.do(t, http.MethodPost, "/api/subscription/webhook", gin.H{"id": "evt_1"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCancelRouteMapsStateErrors(t *testing.T) {
	f := newTestServer(t)
	f.subs.err = subscriptiondomain.ErrNotCancellable

	w := f.do(t, http.MethodPost, "/api/subscription/cancel",
		gin.H{"user_id": "user-1", "subscription_id": "sub_1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutRoute(t *testing.T) {
	f := newTestServer(t)
	f.subs.checkout = &subscriptiondomain.CheckoutResponse{
		CheckoutURL: "https://checkout.example/cs_1",
		CheckoutID:  "cs_1",
	}

	w := f.do(t, http.MethodPost, "/api/subscription/checkout",
		gin.H{"user_id": "user-1", "product_name": "premium"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.example/cs_1", resp["checkout_url"])
}

func TestAdminLimitsRequiresAuth(t *testing.T) {
	f := newTestServer(t)
	f.users.users["admin-1"] = &userdomain.User{
		UserID: "admin-1",
		Type:   userdomain.UserTypeAdmin,
		State:  userdomain.UserStateActive,
	}
	f.users.users["user-1"] = &userdomain.User{
		UserID: "user-1",
		Type:   userdomain.UserTypeUser,
		State:  userdomain.UserStateActive,
	}

	w := f.do(t, http.MethodGet, "/api/admin/limits", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/limits", nil,
		map[string]string{headerAdminUser: "user-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/limits", nil,
		map[string]string{headerAdminUser: "admin-1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminUpdateLimits(t *testing.T) {
	f := newTestServer(t)
	f.users.users["admin-1"] = &userdomain.User{
		UserID: "admin-1",
		Type:   userdomain.UserTypeAdmin,
		State:  userdomain.UserStateActive,
	}

	w := f.do(t, http.MethodPut, "/api/admin/limits",
		gin.H{"limits": []gin.H{{"name": "clients", "premium_level_0": 5, "premium_level_1": 60, "premium_level_2": 1200}}},
		map[string]string{headerAdminUser: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.entitlement.updated, 1)
	assert.Equal(t, "clients", f.entitlement.updated[0].Name)
	assert.EqualValues(t, 60, f.entitlement.updated[0].PremiumLevel1)
}

func TestAdminLimitsStats(t *testing.T) {
	f := newTestServer(t)
	f.users.users["admin-1"] = &userdomain.User{
		UserID: "admin-1",
		Type:   userdomain.UserTypeAdmin,
		State:  userdomain.UserStateActive,
	}
	f.usage.adminStats = &usagedomain.AdminStats{
		UsersByLevel: []usagedomain.LevelCount{
			{PremiumLevel: 0, UserCount: 10},
			{PremiumLevel: 1, UserCount: 3},
		},
		TotalUsage: usagedomain.GlobalUsage{Clients: 42},
	}
	f.entitlement.limits = []entitlementdomain.Limit{{Name: "clients", PremiumLevel0: 3}}

	w := f.do(t, http.MethodGet, "/api/admin/limits/stats", nil,
		map[string]string{headerAdminUser: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats struct {
			UsersByLevel []usagedomain.LevelCount  `json:"users_by_level"`
			TotalUsage   usagedomain.GlobalUsage   `json:"total_usage"`
			Limits       []entitlementdomain.Limit `json:"limits"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Stats.UsersByLevel, 2)
	assert.EqualValues(t, 42, resp.Stats.TotalUsage.Clients)
	require.Len(t, resp.Stats.Limits, 1)
	assert.Equal(t, "clients", resp.Stats.Limits[0].Name)
}
