package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/factory"
)

const defaultBatchSize = int32(100)

type mismatchRepository interface {
	ListUnresolved(ctx context.Context, limit int32) ([]*entity.PaymentMismatch, error)
	MarkResolved(ctx context.Context, id uint64, now time.Time) error
}

// MismatchService surfaces charges that were never recorded so support can follow up.
type MismatchService struct {
	repo      mismatchRepository
	batchSize int32
	logger    logrus.FieldLogger
}

func NewMismatchService(repo mismatchRepository, batchSize int32) *MismatchService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &MismatchService{
		repo:      repo,
		batchSize: batchSize,
		logger:    factory.NewModuleLogger("mismatch-report"),
	}
}

func (s *MismatchService) ListUnresolved(ctx context.Context) ([]*entity.PaymentMismatch, error) {
	if s.repo == nil {
		return nil, ErrLedgerUnavailable
	}
	return s.repo.ListUnresolved(ctx, s.batchSize)
}

func (s *MismatchService) Resolve(ctx context.Context, id uint64) error {
	if s.repo == nil {
		return ErrLedgerUnavailable
	}
	if id == 0 {
		return ErrInvalidRequest
	}
	return s.repo.MarkResolved(ctx, id, time.Now().UTC())
}

// RunReportBatch logs every unresolved mismatch at error level and returns how many
// were found.
func (s *MismatchService) RunReportBatch(ctx context.Context) (int, error) {
	items, err := s.ListUnresolved(ctx)
	if err != nil {
		return 0, err
	}

	for _, item := range items {
		entry := s.logger.WithFields(logrus.Fields{
			"mismatch_id":       item.ID,
			"tab_id":            item.TabID,
			"client_name":       item.ClientName,
			"payment_intent_id": item.PaymentIntentID,
			"payment_method_id": item.PaymentMethodID,
			"amount":            item.Amount.String(),
			"age":               time.Since(item.CreatedAt).Round(time.Second).String(),
		})
		if item.Tier != nil {
			entry = entry.WithField("tier", *item.Tier)
		}
		entry.WithField("reason", item.Message).Error("Unresolved payment mismatch")
	}
	if len(items) == 0 {
		s.logger.Debug("No unresolved payment mismatches")
	}
	return len(items), nil
}
