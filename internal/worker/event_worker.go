// Package worker runs the background side of the CRM: it reacts to domain
// events and runs the scheduled loan servicing sweep.
package worker

import (
	"context"
	"errors"
	"fmt"

	"estatecrm/internal/amqp"
	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
	"estatecrm/internal/services"
	"estatecrm/internal/sheets"
)

// EventWorker handles the events published by the services.
type EventWorker struct {
	store  crm.Store
	loans  *services.LoanService
	ledger sheets.LedgerWriter
	logger *log.Logger
}

// NewEventWorker builds a worker. A nil ledger disables the ledger export.
func NewEventWorker(store crm.Store, loans *services.LoanService, ledger sheets.LedgerWriter, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &EventWorker{
		store:  store,
		loans:  loans,
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Handle is an amqp.Handler. A returned error requeues the message, so
// events about records that no longer exist are acknowledged and dropped.
func (w *EventWorker) Handle(ctx context.Context, e *amqp.Event) error {
	var err error
	switch e.Type {
	case amqp.TransactionRecorded:
		err = w.exportTransaction(ctx, e.ID)
	case amqp.LoanCreated:
		err = w.warmSchedule(ctx, e.ID)
	case amqp.LoanStatusChanged:
		var change amqp.StatusChange
		if decodeErr := e.Decode(&change); decodeErr != nil {
			w.logger.WarnContext(ctx, "Status change without payload", log.FieldLoanID, e.ID, log.FieldError, decodeErr)
			return nil
		}
		w.logger.InfoContext(ctx, "Loan status changed", log.FieldLoanID, e.ID, "from", change.From, "to", change.To)
		return nil
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", "event_type", e.Type, "id", e.ID)
		return nil
	}

	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Event refers to a missing record, dropping", "event_type", e.Type, "id", e.ID)
		return nil
	}
	return err
}

func (w *EventWorker) exportTransaction(ctx context.Context, id string) error {
	if w.ledger == nil {
		w.logger.DebugContext(ctx, "Ledger export disabled, skipping", log.FieldTransactionID, id)
		return nil
	}
	t, err := w.store.Transactions().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	ref, err := w.ledger.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("append transaction %s to ledger: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Transaction exported to ledger",
		log.FieldTransactionID, id,
		"ledger_ref", ref,
		"kind", t.Kind,
		"amount", t.Amount.String())
	return nil
}

// warmSchedule computes the schedule of a new loan so the first page view
// is served from cache.
func (w *EventWorker) warmSchedule(ctx context.Context, id string) error {
	l, view, err := w.loans.ScheduleFor(ctx, id)
	if err != nil {
		return fmt.Errorf("warm schedule of loan %s: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Schedule cached",
		log.FieldLoanID, l.ID,
		"entries", len(view.Entries),
		"periodic_payment", view.Summary.PeriodicPayment.StringFixed(2))
	return nil
}
