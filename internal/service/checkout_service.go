package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/config"
	"github.com/MohamedElsayed002/frontend-carwash/internal/apperr"
	"github.com/MohamedElsayed002/frontend-carwash/internal/backend"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutService creates checkout sessions and stages the purchase around them
type CheckoutService struct {
	backend   Backend
	gate      *EntitlementGate
	drafts    *drafts.Store
	methods   *PaymentMethods
	publisher EventPublisher
	validate  *validator.Validate
	cfg       config.CheckoutConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	backend Backend,
	gate *EntitlementGate,
	drafts *drafts.Store,
	methods *PaymentMethods,
	publisher EventPublisher,
	cfg config.CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		backend:   backend,
		gate:      gate,
		drafts:    drafts,
		methods:   methods,
		publisher: publisher,
		validate:  validator.New(),
		cfg:       cfg,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CheckoutRequest is everything needed to open a checkout session
type CheckoutRequest struct {
	Amount        decimal.Decimal          `json:"amount"`
	Currency      string                   `json:"currency" validate:"required,len=3,alpha,uppercase"`
	PaymentMethod models.PaymentMethodHint `json:"payment_method" validate:"omitempty,oneof=CARD APPLE_PAY"`
	Customer      models.Customer          `json:"customer"`
	Billing       models.Billing           `json:"billing"`
}

// PurchaseRequest is the browser's "pay now" for the package on the profile
type PurchaseRequest struct {
	PaymentMethod models.PaymentMethodHint `json:"payment_method"`
	CarType       string                   `json:"car_type"`
	Amount        *decimal.Decimal         `json:"amount,omitempty"`
}

// PurchaseResult tells the browser where to go next
type PurchaseResult struct {
	AlreadyPaid   bool                     `json:"already_paid"`
	RedirectTo    string                   `json:"redirect_to"`
	CheckoutID    string                   `json:"checkout_id,omitempty"`
	FormURL       string                   `json:"form_url,omitempty"`
	Brands        string                   `json:"brands,omitempty"`
	OrderID       string                   `json:"order_id,omitempty"`
	Amount        *decimal.Decimal         `json:"amount,omitempty"`
	Currency      string                   `json:"currency,omitempty"`
	PaymentMethod models.PaymentMethodHint `json:"payment_method,omitempty"`
}

// CreateCheckout validates the request and asks the backend for a new checkout session.
// Validation failures never reach the network.
func (s *CheckoutService) CreateCheckout(ctx context.Context, token string, req CheckoutRequest) (*models.CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateCheckout")
	defer span.End()

	if err := s.validateRequest(&req); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues(string(apperr.KindValidation)).Inc()
		return nil, err
	}

	method, err := s.methods.Get(req.PaymentMethod)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues(string(apperr.KindValidation)).Inc()
		return nil, err
	}

	checkoutID, err := s.backend.PrepareCheckout(ctx, token, backend.PrepareCheckoutRequest{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		PaymentType: s.cfg.PaymentType,
		Customer:    req.Customer,
		Billing:     req.Billing,
	})
	if err != nil {
		util.RecordSpanError(span, err)
		util.CheckoutsFailedTotal.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, fmt.Errorf("failed to prepare checkout: %w", err)
	}

	util.CheckoutsCreatedTotal.WithLabelValues(string(method.Hint())).Inc()
	s.logger.Info("Checkout created",
		zap.String("checkout_id", checkoutID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("method", string(method.Hint())))

	return &models.CheckoutSession{
		CheckoutID:    checkoutID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: method.Hint(),
		Customer:      req.Customer,
		Billing:       req.Billing,
		CreatedAt:     s.now(),
	}, nil
}

func (s *CheckoutService) validateRequest(req *CheckoutRequest) error {
	if !req.Amount.IsPositive() {
		return apperr.New(apperr.KindValidation, "amount must be positive")
	}
	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.KindValidation, err, "invalid request")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return apperr.New(apperr.KindValidation, strings.Join(parts, "; "))
}

// StartPurchase stages a draft for the profile's package and opens a fresh checkout for it.
// A user who already holds a paid package is sent to the QR view without a checkout.
func (s *CheckoutService) StartPurchase(ctx context.Context, sid string, req PurchaseRequest) (*PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.StartPurchase")
	defer span.End()

	token, err := s.gate.Bearer(ctx, sid)
	if err != nil {
		return nil, err
	}

	profile, err := s.gate.Check(ctx, sid, token)
	if err != nil {
		return nil, err
	}

	if profile.IsPaid {
		util.EntitlementShortCircuitsTotal.WithLabelValues("checkout").Inc()
		s.publishShortCircuit(ctx, sid, profile.ID, "checkout")
		return &PurchaseResult{AlreadyPaid: true, RedirectTo: s.cfg.QRRoute}, nil
	}

	if profile.Package == nil {
		return nil, apperr.New(apperr.KindValidation, "no active package")
	}
	price := profile.Package.BasePrice
	if req.Amount != nil && !req.Amount.Equal(price) {
		return nil, apperr.Newf(apperr.KindValidation, "amount %s does not match package price %s",
			req.Amount.StringFixed(2), price.StringFixed(2))
	}

	carType := req.CarType
	if carType == "" {
		carType = profile.CarType
	}

	draft := &models.DraftPurchase{
		Package: *profile.Package,
		Customer: models.CustomerSnapshot{
			ID:    profile.ID,
			Name:  profile.Name,
			Email: profile.Email,
			Phone: profile.Phone,
		},
		CarType:    carType,
		TotalPrice: price,
		OrderID:    newOrderID(),
		OrderDate:  s.now().UTC(),
	}
	if err := s.drafts.Stage(ctx, sid, draft, s.cfg.Currency); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to stage purchase")
	}

	givenName, surname := splitName(profile.Name)
	checkout, err := s.CreateCheckout(ctx, token, CheckoutRequest{
		Amount:        price,
		Currency:      s.cfg.Currency,
		PaymentMethod: req.PaymentMethod,
		Customer: models.Customer{
			Email:     profile.Email,
			GivenName: givenName,
			Surname:   surname,
		},
		Billing: models.Billing{
			Street1:  s.cfg.Billing.Street1,
			City:     s.cfg.Billing.City,
			State:    s.cfg.Billing.State,
			Country:  s.cfg.Billing.Country,
			Postcode: s.cfg.Billing.Postcode,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.drafts.Put(ctx, sid, drafts.KeyCheckoutData, checkout); err != nil {
		s.logger.Warn("Failed to stage checkout data", zap.String("checkout_id", checkout.CheckoutID), zap.Error(err))
	}
	if err := s.drafts.Put(ctx, sid, drafts.KeyCheckoutID, checkout.CheckoutID); err != nil {
		s.logger.Warn("Failed to stage checkout id", zap.String("checkout_id", checkout.CheckoutID), zap.Error(err))
	}

	event := &models.CheckoutCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutCreated,
			Timestamp: s.now(),
		},
		CheckoutID:    checkout.CheckoutID,
		SessionID:     sid,
		UserID:        profile.ID,
		OrderID:       draft.OrderID,
		Amount:        checkout.Amount,
		Currency:      checkout.Currency,
		PaymentMethod: string(checkout.PaymentMethod),
	}
	if err := s.publisher.PublishCheckoutCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutCreated event", zap.Error(err))
	}

	method, _ := s.methods.Get(checkout.PaymentMethod)
	formPath := "/payment-form/" + checkout.CheckoutID
	return &PurchaseResult{
		RedirectTo:    formPath,
		CheckoutID:    checkout.CheckoutID,
		FormURL:       s.backend.HostedFormURL(checkout.CheckoutID, profile.ID),
		Brands:        method.Brands(),
		OrderID:       draft.OrderID,
		Amount:        &checkout.Amount,
		Currency:      checkout.Currency,
		PaymentMethod: checkout.PaymentMethod,
	}, nil
}

func (s *CheckoutService) publishShortCircuit(ctx context.Context, sid, userID, route string) {
	event := &models.EntitlementShortCircuitEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeEntitlementShortCircuit,
			Timestamp: s.now(),
		},
		SessionID: sid,
		UserID:    userID,
		Route:     route,
	}
	if err := s.publisher.PublishEntitlementShortCircuit(ctx, event); err != nil {
		s.logger.Error("Failed to publish EntitlementShortCircuit event", zap.Error(err))
	}
}

const orderIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomIndexes skips the uuid version and variant bytes
var randomIndexes = [9]int{0, 1, 2, 3, 4, 5, 7, 9, 10}

// newOrderID returns "ORDER-" followed by nine upper-case base-36 characters
func newOrderID() string {
	id := uuid.New()
	buf := make([]byte, len(randomIndexes))
	for i, idx := range randomIndexes {
		buf[i] = orderIDAlphabet[int(id[idx])%len(orderIDAlphabet)]
	}
	return "ORDER-" + string(buf)
}

func splitName(full string) (given, surname string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
