package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/config"
	"github.com/MohamedElsayed002/frontend-carwash/internal/backend"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient"
	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient/redistest"
	"github.com/MohamedElsayed002/frontend-carwash/internal/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu            sync.Mutex
	profile       *models.UserProfile
	profileErr    error
	checkoutID    string
	prepareErr    error
	lastPrepare   backend.PrepareCheckoutRequest
	status        *models.StatusResult
	statusErr     error
	statusGate    chan struct{}
	lastCorr      models.Correlation
	qr            *models.QRCode
	pkgStatus     *models.PackageStatus
	merchantReply json.RawMessage

	prepareCalls  atomic.Int32
	statusCalls   atomic.Int32
	profileCalls  atomic.Int32
	ratingCalls   atomic.Int32
	tipCalls      atomic.Int32
	merchantCalls atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profile: &models.UserProfile{
			ID:      "user-1",
			Name:    "Sara Al Harbi",
			Email:   "sara@example.com",
			CarType: "sedan",
			Package: &models.PackageSnapshot{
				ID:        "pkg-1",
				Name:      "Gold",
				BasePrice: decimal.RequireFromString("149"),
				Washes:    8,
			},
		},
		checkoutID: "CHK-1",
		status:     &models.StatusResult{Success: true, Status: "success"},
		qr:         &models.QRCode{QRCode: "PKG-QR-1", PackageInfo: map[string]any{"name": "Gold"}},
		pkgStatus:  &models.PackageStatus{HasPackage: true, Package: map[string]any{"washesLeft": 8}},
	}
}

func (f *fakeBackend) setPaid(paid bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := *f.profile
	p.IsPaid = paid
	f.profile = &p
}

func (f *fakeBackend) PrepareCheckout(_ context.Context, _ string, body backend.PrepareCheckoutRequest) (string, error) {
	f.prepareCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrepare = body
	if f.prepareErr != nil {
		return "", f.prepareErr
	}
	return f.checkoutID, nil
}

func (f *fakeBackend) HostedFormURL(checkoutID, userID string) string {
	return backend.BuildHostedFormURL("https://api.example.com/api", checkoutID, userID)
}

func (f *fakeBackend) CheckoutStatus(ctx context.Context, _ string, corr models.Correlation) (*models.StatusResult, error) {
	f.statusCalls.Add(1)
	f.mu.Lock()
	f.lastCorr = corr
	gate := f.statusGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	res := *f.status
	return &res, nil
}

func (f *fakeBackend) Profile(context.Context, string) (*models.UserProfile, error) {
	f.profileCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeBackend) PackageQRCode(context.Context, string) (*models.QRCode, error) {
	return f.qr, nil
}

func (f *fakeBackend) PackageStatus(context.Context, string) (*models.PackageStatus, error) {
	return f.pkgStatus, nil
}

func (f *fakeBackend) SubmitRating(context.Context, string, models.RatingRequest) error {
	f.ratingCalls.Add(1)
	return nil
}

func (f *fakeBackend) SubmitTip(context.Context, string, models.TipRequest) error {
	f.tipCalls.Add(1)
	return nil
}

func (f *fakeBackend) ValidateApplePayMerchant(context.Context, string, backend.MerchantValidationRequest) (json.RawMessage, error) {
	f.merchantCalls.Add(1)
	return f.merchantReply, nil
}

type recordingPublisher struct {
	mu             sync.Mutex
	created        []*models.CheckoutCreatedEvent
	reconciled     []*models.PaymentReconciledEvent
	shortCircuited []*models.EntitlementShortCircuitEvent
}

func (p *recordingPublisher) PublishCheckoutCreated(_ context.Context, e *models.CheckoutCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishPaymentReconciled(_ context.Context, e *models.PaymentReconciledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconciled = append(p.reconciled, e)
	return nil
}

func (p *recordingPublisher) PublishEntitlementShortCircuit(_ context.Context, e *models.EntitlementShortCircuitEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shortCircuited = append(p.shortCircuited, e)
	return nil
}

func (p *recordingPublisher) counts() (created, reconciled, short int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created), len(p.reconciled), len(p.shortCircuited)
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		Currency:      "SAR",
		PaymentType:   "DB",
		RedirectDelay: 4 * time.Second,
		ResultWait:    2 * time.Second,
		MountTTL:      time.Minute,
		DraftTTL:      time.Hour,
		QRRoute:       "/qr",
		RetryRoute:    "/package-details",
		Billing: config.BillingDefaults{
			Street1:  "King Fahd Road",
			City:     "Riyadh",
			State:    "Riyadh",
			Country:  "SA",
			Postcode: "12211",
		},
	}
}

type harness struct {
	kv         redisclient.KV
	backend    *fakeBackend
	publisher  *recordingPublisher
	sessions   *session.Store
	drafts     *drafts.Store
	gate       *EntitlementGate
	handoff    *Handoff
	claims     *ClaimStore
	reconciler *Reconciler
	mounts     *MountRegistry
	checkout   *CheckoutService
	cfg        config.CheckoutConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kv, _ := redistest.New(t)
	h := &harness{
		kv:        kv,
		backend:   newFakeBackend(),
		publisher: &recordingPublisher{},
		cfg:       testCheckoutConfig(),
	}
	h.sessions = session.NewStore(h.kv, time.Hour)
	h.drafts = drafts.NewStore(h.kv, time.Hour)
	h.gate = NewEntitlementGate(h.backend, h.sessions)
	h.handoff = NewHandoff(h.backend, h.gate, h.drafts)
	h.claims = NewClaimStore(h.kv, time.Hour)
	h.reconciler = NewReconciler(h.backend, h.gate, h.handoff, h.claims, h.publisher, h.cfg)
	h.reconciler.pollInterval = 10 * time.Millisecond
	h.mounts = NewMountRegistry(h.reconciler, h.cfg.MountTTL)
	h.checkout = NewCheckoutService(h.backend, h.gate, h.drafts,
		NewPaymentMethods(h.backend, config.ApplePayConfig{MerchantID: "merchant.com.paypass", Domain: "paypass.sa", DisplayName: "PayPass Car Wash"}),
		h.publisher, h.cfg)
	return h
}

func (h *harness) signIn(t *testing.T, sid string) {
	t.Helper()
	require.NoError(t, h.sessions.SetToken(context.Background(), sid, "token-"+sid))
}

// viewlessKV refuses to store remembered views, as a Redis outage between claim and settle would
type viewlessKV struct {
	redisclient.KV
}

func (k viewlessKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if strings.HasPrefix(key, "reconcile:view:") {
		return errors.New("connection refused")
	}
	return k.KV.Set(ctx, key, value, ttl)
}
