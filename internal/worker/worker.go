package worker

import (
	"context"

	"github.com/MohamedElsayed002/frontend-carwash/internal/broker"
	"github.com/MohamedElsayed002/frontend-carwash/internal/service"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"go.uber.org/zap"
)

// LedgerWorker projects checkout events from Kafka into the Postgres ledger
type LedgerWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewLedgerWorker creates a new ledger worker
func NewLedgerWorker(consumer *broker.Consumer, projector *service.LedgerProjector) *LedgerWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnCheckoutCreated(projector.HandleCheckoutCreated)
	eventHandler.OnPaymentReconciled(projector.HandlePaymentReconciled)
	eventHandler.OnEntitlementShortCircuit(projector.HandleEntitlementShortCircuit)

	return &LedgerWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LedgerWorker) Stop() error {
	w.logger.Info("Stopping ledger worker")
	return w.consumer.Close()
}
