package services

import (
	"context"
	"errors"
	"fmt"

	"estatecrm/internal/amqp"
	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
	"estatecrm/internal/metrics"
)

// TransactionService records ledger entries and announces them so the
// worker can export them.
type TransactionService struct {
	store   crm.Store
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewTransactionService(store crm.Store, events EventPublisher, m *metrics.Metrics, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		store:   store,
		events:  events,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentLedger),
	}
}

// Record stores a transaction after checking the loan and client it points
// at. A loan reference fills in a missing client reference.
func (s *TransactionService) Record(ctx context.Context, t *core.Transaction) error {
	if t.LoanID != "" {
		l, err := s.store.Loans().Get(ctx, t.LoanID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("loan %s: %w", t.LoanID, core.ErrMissingReference)
			}
			return err
		}
		if t.ClientID == "" {
			t.ClientID = l.ClientID
		}
	}
	if t.ClientID != "" {
		if _, err := s.store.Clients().Get(ctx, t.ClientID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("client %s: %w", t.ClientID, core.ErrMissingReference)
			}
			return err
		}
	}

	if err := s.store.Transactions().Create(ctx, t); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	log.NewStructuredLogger(s.logger).LogTransactionRecorded(ctx, t.ID, string(t.Kind), t.Amount.Cents)
	publish(ctx, s.events, s.metrics, s.logger, amqp.TransactionRecorded, t.ID, nil)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.Transactions().Get(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f crm.Filter) ([]core.Transaction, error) {
	return s.store.Transactions().List(ctx, f)
}
