package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
	"github.com/vibast-solutions/ms-go-billing-bff/app/repository"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
)

type fakeMismatchRepo struct {
	markResolvedFn func(id uint64) error
	resolved       []uint64
}

func (r *fakeMismatchRepo) ListUnresolved(context.Context, int32) ([]*entity.PaymentMismatch, error) {
	return nil, nil
}

func (r *fakeMismatchRepo) MarkResolved(_ context.Context, id uint64, _ time.Time) error {
	if r.markResolvedFn != nil {
		if err := r.markResolvedFn(id); err != nil {
			return err
		}
	}
	r.resolved = append(r.resolved, id)
	return nil
}

func TestResolveMismatchMarksRow(t *testing.T) {
	repo := &fakeMismatchRepo{}
	if err := resolveMismatch(context.Background(), service.NewMismatchService(repo, 10), " 42 "); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(repo.resolved) != 1 || repo.resolved[0] != 42 {
		t.Fatalf("unexpected resolved ids: %v", repo.resolved)
	}
}

func TestResolveMismatchReturnsFailures(t *testing.T) {
	repo := &fakeMismatchRepo{markResolvedFn: func(uint64) error { return repository.ErrMismatchNotFound }}
	mismatchService := service.NewMismatchService(repo, 10)

	err := resolveMismatch(context.Background(), mismatchService, "7")
	if !errors.Is(err, repository.ErrMismatchNotFound) {
		t.Fatalf("expected ErrMismatchNotFound, got %v", err)
	}

	for _, raw := range []string{"0", "abc", "-1"} {
		if err := resolveMismatch(context.Background(), mismatchService, raw); err == nil {
			t.Fatalf("expected error for id %q", raw)
		}
	}
	if len(repo.resolved) != 0 {
		t.Fatalf("expected nothing resolved, got %v", repo.resolved)
	}
}
