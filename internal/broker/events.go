package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing checkout events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func checkoutKey(checkoutID, fallback string) string {
	if checkoutID != "" {
		return "checkout-" + checkoutID
	}
	return "session-" + fallback
}

// PublishCheckoutCreated publishes CheckoutCreated event
func (ep *EventPublisher) PublishCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, checkoutKey(event.CheckoutID, event.SessionID), event.EventType, event)
}

// PublishPaymentReconciled publishes PaymentReconciled event
func (ep *EventPublisher) PublishPaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error {
	return ep.producer.PublishEvent(ctx, checkoutKey(event.CheckoutID, event.SessionID), event.EventType, event)
}

// PublishEntitlementShortCircuit publishes EntitlementShortCircuit event
func (ep *EventPublisher) PublishEntitlementShortCircuit(ctx context.Context, event *models.EntitlementShortCircuitEvent) error {
	return ep.producer.PublishEvent(ctx, "session-"+event.SessionID, event.EventType, event)
}

// Discard is the publisher used when no brokers are configured
type Discard struct{}

func (Discard) PublishCheckoutCreated(context.Context, *models.CheckoutCreatedEvent) error {
	return nil
}

func (Discard) PublishPaymentReconciled(context.Context, *models.PaymentReconciledEvent) error {
	return nil
}

func (Discard) PublishEntitlementShortCircuit(context.Context, *models.EntitlementShortCircuitEvent) error {
	return nil
}

// EventHandler routes incoming events by type
type EventHandler struct {
	onCheckoutCreated         func(context.Context, *models.CheckoutCreatedEvent) error
	onPaymentReconciled       func(context.Context, *models.PaymentReconciledEvent) error
	onEntitlementShortCircuit func(context.Context, *models.EntitlementShortCircuitEvent) error
	logger                    *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnCheckoutCreated registers a handler for CheckoutCreated events
func (eh *EventHandler) OnCheckoutCreated(handler func(context.Context, *models.CheckoutCreatedEvent) error) {
	eh.onCheckoutCreated = handler
}

// OnPaymentReconciled registers a handler for PaymentReconciled events
func (eh *EventHandler) OnPaymentReconciled(handler func(context.Context, *models.PaymentReconciledEvent) error) {
	eh.onPaymentReconciled = handler
}

// OnEntitlementShortCircuit registers a handler for EntitlementShortCircuit events
func (eh *EventHandler) OnEntitlementShortCircuit(handler func(context.Context, *models.EntitlementShortCircuitEvent) error) {
	eh.onEntitlementShortCircuit = handler
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	if baseEvent.EventType == "" {
		baseEvent.EventType = headerValue(msg, eventTypeHeader)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCheckoutCreated:
		if eh.onCheckoutCreated != nil {
			var event models.CheckoutCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CheckoutCreated event: %w", err)
			}
			return eh.onCheckoutCreated(ctx, &event)
		}

	case models.EventTypePaymentReconciled:
		if eh.onPaymentReconciled != nil {
			var event models.PaymentReconciledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentReconciled event: %w", err)
			}
			return eh.onPaymentReconciled(ctx, &event)
		}

	case models.EventTypeEntitlementShortCircuit:
		if eh.onEntitlementShortCircuit != nil {
			var event models.EntitlementShortCircuitEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal EntitlementShortCircuit event: %w", err)
			}
			return eh.onEntitlementShortCircuit(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
