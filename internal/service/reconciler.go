package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/config"
	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/backend"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of a mounted result view
type State string

const (
	StateInit                State = "INIT"
	StateCheckingEntitlement State = "CHECKING_ENTITLEMENT"
	StateAlreadyPaid         State = "ALREADY_PAID"
	StateAwaitingForm        State = "AWAITING_FORM"
	StateReconciling         State = "RECONCILING"
	StateSuccess             State = "SUCCESS"
	StateFailure             State = "FAILURE"
)

// Actions offered by a view
const (
	ActionContinue = "continue"
	ActionRetry    = string(apperr.RecoveryRetry)
	ActionBack     = string(apperr.RecoveryBack)
)

// ReturnParams is what the browser brought to a result route
type ReturnParams struct {
	Status       string `json:"status,omitempty"`
	CheckoutID   string `json:"checkout_id,omitempty"`
	ResourcePath string `json:"resource_path,omitempty"`
	// FormCheckoutID is the checkout named in the payment-form route path
	FormCheckoutID string `json:"form_checkout_id,omitempty"`
}

// HasRedirect reports whether the hosted form sent the browser back
func (p ReturnParams) HasRedirect() bool {
	return p.Status != "" || p.CheckoutID != "" || p.ResourcePath != ""
}

// Correlation picks the transaction identifier. On the payment-form route the
// path id stands in for a redirect that carried only a status.
func (p ReturnParams) Correlation() models.Correlation {
	corr := models.Correlation{CheckoutID: p.CheckoutID, ResourcePath: p.ResourcePath}
	if corr.Empty() && p.Status != "" {
		corr.CheckoutID = p.FormCheckoutID
	}
	return corr
}

func (p ReturnParams) key() string {
	return strings.Join([]string{p.FormCheckoutID, p.Status, p.CheckoutID, p.ResourcePath}, "|")
}

// Redirect is a scheduled navigation
type Redirect struct {
	To           string `json:"to"`
	AfterSeconds int    `json:"after_seconds"`
}

// ViewError names what went wrong
type ViewError struct {
	Kind   apperr.Kind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// View is what a result route renders
type View struct {
	State       State                       `json:"state"`
	Outcome     models.Outcome              `json:"outcome"`
	Message     string                      `json:"message,omitempty"`
	Error       *ViewError                  `json:"error,omitempty"`
	Action      string                      `json:"action,omitempty"`
	ActionURL   string                      `json:"action_url,omitempty"`
	FormURL     string                      `json:"form_url,omitempty"`
	Redirect    *Redirect                   `json:"redirect,omitempty"`
	Entitlement *models.EntitlementSnapshot `json:"entitlement,omitempty"`
}

// Terminal reports whether the view will not change again
func (v View) Terminal() bool {
	switch v.State {
	case StateAlreadyPaid, StateSuccess, StateFailure:
		return true
	}
	return false
}

// Succeeded reports whether the user holds a paid package according to this view
func (v View) Succeeded() bool {
	return v.State == StateAlreadyPaid || v.State == StateSuccess
}

// Reconciler holds what every mounted result view shares
type Reconciler struct {
	backend      Backend
	gate         *EntitlementGate
	handoff      *Handoff
	claims       *ClaimStore
	publisher    EventPublisher
	cfg          config.CheckoutConfig
	logger       *zap.Logger
	pollInterval time.Duration
	followWait   time.Duration
	now          func() time.Time
}

// NewReconciler creates a new reconciler
func NewReconciler(
	backend Backend,
	gate *EntitlementGate,
	handoff *Handoff,
	claims *ClaimStore,
	publisher EventPublisher,
	cfg config.CheckoutConfig,
) *Reconciler {
	followWait := cfg.FollowWait
	if followWait <= 0 {
		followWait = 30 * time.Second
	}
	return &Reconciler{
		backend:      backend,
		gate:         gate,
		handoff:      handoff,
		claims:       claims,
		publisher:    publisher,
		cfg:          cfg,
		logger:       util.GetLogger(),
		pollInterval: 250 * time.Millisecond,
		followWait:   followWait,
		now:          time.Now,
	}
}

// Mount creates the handler for one navigation to a result route
func (r *Reconciler) Mount(sid string, params ReturnParams) *ReturnHandler {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.MountTTL)
	return &ReturnHandler{
		r:         r,
		sid:       sid,
		params:    params,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		mountedAt: r.now(),
		view:      View{State: StateInit, Outcome: models.OutcomePending},
		logger:    util.SessionLogger(sid),
	}
}

// ReturnHandler is one mounted result view. However many times it is resolved,
// it reaches the backend's status endpoint at most once.
type ReturnHandler struct {
	r         *Reconciler
	sid       string
	params    ReturnParams
	guard     OneShot
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	mountedAt time.Time
	logger    *zap.Logger

	mu        sync.RWMutex
	view      View
	attempt   *models.ReconciliationAttempt
	unmounted bool
}

// Resolve triggers reconciliation on first call and waits up to the configured
// result wait for a terminal view. Later calls only wait.
func (h *ReturnHandler) Resolve(ctx context.Context) View {
	if h.guard.Claim() {
		go h.run()
	} else if h.guard.InFlight() {
		util.GuardRejectionsTotal.WithLabelValues("local").Inc()
	}

	timer := time.NewTimer(h.r.cfg.ResultWait)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-ctx.Done():
	case <-timer.C:
	}
	return h.View()
}

// View returns the current view
func (h *ReturnHandler) View() View {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.view
}

// Attempt returns the reconciliation attempt, if one was made
func (h *ReturnHandler) Attempt() *models.ReconciliationAttempt {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.attempt == nil {
		return nil
	}
	a := *h.attempt
	return &a
}

// Done is closed when the handler has nothing more to do
func (h *ReturnHandler) Done() <-chan struct{} {
	return h.done
}

// Unmount detaches the view. A status response arriving afterwards is dropped.
func (h *ReturnHandler) Unmount() {
	h.mu.Lock()
	already := h.unmounted
	h.unmounted = true
	h.mu.Unlock()

	if !already {
		h.cancel()
	}
}

func (h *ReturnHandler) stale() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.unmounted
}

// commit applies v unless the view was unmounted
func (h *ReturnHandler) commit(v View) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unmounted {
		return false
	}
	if v.Entitlement == nil {
		v.Entitlement = h.view.Entitlement
	}
	h.view = v
	if h.attempt != nil && v.Terminal() {
		if v.Succeeded() {
			h.attempt.Outcome = models.OutcomeSuccess
		} else {
			h.attempt.Outcome = models.OutcomeFailure
		}
	}
	return true
}

func (h *ReturnHandler) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.unmounted {
		h.view.State = s
	}
}

func (h *ReturnHandler) run() {
	defer close(h.done)
	defer h.guard.Finish()

	ctx, span := util.StartSpan(h.ctx, "ReturnHandler.Reconcile")
	defer span.End()

	p := h.params
	if !p.HasRedirect() && p.FormCheckoutID == "" {
		h.fail(ctx, models.Correlation{}, apperr.New(apperr.KindMissingCorrelation, "no checkout id in return link"))
		return
	}

	h.setState(StateCheckingEntitlement)
	token, err := h.r.gate.Bearer(ctx, h.sid)
	if err != nil {
		h.fail(ctx, p.Correlation(), err)
		return
	}
	profile, err := h.r.gate.Check(ctx, h.sid, token)
	if h.stale() {
		return
	}
	if err != nil {
		h.fail(ctx, p.Correlation(), err)
		return
	}
	snap := profile.Snapshot()
	h.mu.Lock()
	h.view.Entitlement = snap
	h.mu.Unlock()

	if snap.IsPaid {
		h.alreadyPaid(ctx, snap)
		return
	}

	if !p.HasRedirect() {
		h.commit(View{
			State:   StateAwaitingForm,
			Outcome: models.OutcomePending,
			Message: "Complete your payment in the secure form.",
			FormURL: h.r.backend.HostedFormURL(p.FormCheckoutID, profile.ID),
		})
		return
	}

	corr := p.Correlation()
	if corr.Empty() {
		h.fail(ctx, corr, apperr.New(apperr.KindMissingCorrelation, "return link has a status but no checkout id"))
		return
	}
	if p.Status != "" && !strings.EqualFold(p.Status, "success") {
		h.fail(ctx, corr, apperr.Newf(apperr.KindBackendRejected, "payment form returned status %q", p.Status))
		return
	}

	owner := h.sid + "/" + uuid.New().String()
	claimed, err := h.r.claims.Claim(ctx, corr, owner)
	if err != nil {
		h.logger.Warn("Cluster claim unavailable, relying on local guard", zap.Error(err))
		claimed = true
	}
	if !claimed {
		util.GuardRejectionsTotal.WithLabelValues("cluster").Inc()
		h.follow(ctx, corr)
		return
	}

	h.mu.Lock()
	h.attempt = &models.ReconciliationAttempt{
		Correlation: corr,
		AttemptedAt: h.r.now(),
		Outcome:     models.OutcomePending,
	}
	h.mu.Unlock()
	h.setState(StateReconciling)

	util.StatusCallsTotal.Inc()
	h.logger.Info("Reconciling payment", zap.String("correlation", corr.Key()))
	res, err := h.r.backend.CheckoutStatus(ctx, token, corr)
	if h.stale() {
		util.StaleResponsesDroppedTotal.Inc()
		h.logger.Info("Dropping status response for unmounted view", zap.String("correlation", corr.Key()))
		// the claim outlives this mount; later mounts of the same link settle on this
		h.remember(ctx, corr, h.consumedView())
		return
	}
	if err != nil {
		h.finish(ctx, corr, h.failureView(err), err)
		return
	}
	if !reportsSuccess(p.Status, res) {
		kind := apperr.KindBackendRejected
		if backend.LooksConsumed(res.Message) {
			kind = apperr.KindAlreadyConsumed
		}
		msg := res.Message
		if msg == "" {
			msg = "payment status " + res.Status
		}
		ferr := apperr.New(kind, msg)
		h.finish(ctx, corr, h.failureView(ferr), ferr)
		return
	}

	h.finish(ctx, corr, h.successView(StateSuccess, "Payment confirmed. Your wash package is active."), nil)
}

// reportsSuccess is true only when the redirect did not report failure and the backend confirms success
func reportsSuccess(redirectStatus string, res *models.StatusResult) bool {
	if redirectStatus != "" && !strings.EqualFold(redirectStatus, "success") {
		return false
	}
	if res == nil || !res.Success {
		return false
	}
	return res.Status == "" || strings.EqualFold(res.Status, "success")
}

func (h *ReturnHandler) successView(state State, message string) View {
	return View{
		State:     state,
		Outcome:   models.OutcomeSuccess,
		Message:   message,
		Action:    ActionContinue,
		ActionURL: h.r.cfg.QRRoute,
		Redirect: &Redirect{
			To:           h.r.cfg.QRRoute,
			AfterSeconds: int(h.r.cfg.RedirectDelay / time.Second),
		},
	}
}

func (h *ReturnHandler) failureView(err error) View {
	kind := apperr.KindOf(err)
	meta := apperr.MetadataFor(kind)
	v := View{
		State:   StateFailure,
		Outcome: models.OutcomeFailure,
		Message: meta.PublicMessage,
		Error:   &ViewError{Kind: kind},
		Action:  string(meta.Recovery),
	}
	if kind == apperr.KindBackendRejected || kind == apperr.KindValidation {
		if typed := apperr.As(err); typed != nil {
			v.Error.Detail = typed.Message()
		}
	}
	if meta.Recovery == apperr.RecoveryRetry {
		v.ActionURL = h.r.cfg.RetryRoute
	} else {
		v.ActionURL = "/"
	}
	return v
}

func (h *ReturnHandler) alreadyPaid(ctx context.Context, snap *models.EntitlementSnapshot) {
	if !h.commit(h.successView(StateAlreadyPaid, "You already have an active wash package.")) {
		return
	}
	util.EntitlementShortCircuitsTotal.WithLabelValues("result").Inc()
	h.logger.Info("Already paid, skipping reconciliation", zap.String("user_id", snap.UserID))

	event := &models.EntitlementShortCircuitEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeEntitlementShortCircuit,
			Timestamp: h.r.now(),
		},
		SessionID: h.sid,
		UserID:    snap.UserID,
		Route:     "result",
	}
	if err := h.r.publisher.PublishEntitlementShortCircuit(ctx, event); err != nil {
		h.logger.Error("Failed to publish EntitlementShortCircuit event", zap.Error(err))
	}
}

// fail ends the mount before any status call was made
func (h *ReturnHandler) fail(ctx context.Context, corr models.Correlation, err error) {
	h.finish(ctx, corr, h.failureView(err), err)
}

func (h *ReturnHandler) finish(ctx context.Context, corr models.Correlation, view View, cause error) {
	if !h.commit(view) {
		util.StaleResponsesDroppedTotal.Inc()
		return
	}

	kind := ""
	if cause != nil {
		kind = string(apperr.KindOf(cause))
	}
	util.ReconciliationsTotal.WithLabelValues(string(view.Outcome), kind).Inc()

	attempt := h.Attempt()
	if view.Succeeded() && attempt != nil {
		if err := h.r.handoff.Complete(ctx, h.sid, corr); err != nil {
			h.logger.Warn("Failed to write final order snapshot", zap.Error(err))
		}
	}

	if attempt == nil {
		h.logger.Info("Result view settled without a status call",
			zap.String("state", string(view.State)),
			zap.String("kind", kind))
		return
	}

	h.remember(ctx, corr, view)

	msg := ""
	if view.Error != nil {
		msg = view.Error.Detail
	}
	event := &models.PaymentReconciledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentReconciled,
			Timestamp: h.r.now(),
		},
		CheckoutID:   corr.CheckoutID,
		ResourcePath: corr.ResourcePath,
		SessionID:    h.sid,
		Outcome:      view.Outcome,
		ErrorKind:    kind,
		Message:      msg,
		AttemptedAt:  attempt.AttemptedAt,
	}
	if err := h.r.publisher.PublishPaymentReconciled(ctx, event); err != nil {
		h.logger.Error("Failed to publish PaymentReconciled event", zap.Error(err))
	}

	h.logger.Info("Reconciliation finished",
		zap.String("correlation", corr.Key()),
		zap.String("outcome", string(view.Outcome)),
		zap.String("kind", kind))
}

func errAlreadyChecked() error {
	return apperr.New(apperr.KindAlreadyConsumed, "payment status was already checked")
}

// consumedView is the neutral failure shown when another mount already used the correlation
func (h *ReturnHandler) consumedView() View {
	return h.failureView(errAlreadyChecked())
}

// remember shares a terminal view with followers. It runs detached from the
// mount so an unmount or mount expiry does not lose it.
func (h *ReturnHandler) remember(ctx context.Context, corr models.Correlation, view View) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	view.Entitlement = nil
	if err := h.r.claims.Remember(ctx, corr, view); err != nil {
		h.logger.Warn("Failed to remember reconciliation view", zap.Error(err))
	}
}

// follow waits for the claimant's remembered view instead of querying again.
// If none arrives within the follow wait the view settles as already checked.
func (h *ReturnHandler) follow(ctx context.Context, corr models.Correlation) {
	h.setState(StateReconciling)
	ticker := time.NewTicker(h.r.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(h.r.followWait)
	defer deadline.Stop()

	for {
		view, err := h.r.claims.Recall(ctx, corr)
		if err != nil {
			h.logger.Warn("Failed to recall reconciliation view", zap.Error(err))
		}
		if view != nil {
			h.commit(*view)
			return
		}
		select {
		case <-ctx.Done():
			h.giveUp(ctx, corr)
			return
		case <-deadline.C:
			h.giveUp(ctx, corr)
			return
		case <-ticker.C:
		}
	}
}

func (h *ReturnHandler) giveUp(ctx context.Context, corr models.Correlation) {
	h.logger.Warn("Claimant never reported, settling as already checked", zap.String("correlation", corr.Key()))
	err := errAlreadyChecked()
	h.finish(ctx, corr, h.failureView(err), err)
}
