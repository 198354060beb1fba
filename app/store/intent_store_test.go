package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

func TestIntentStoreLifecycle(t *testing.T) {
	s := NewIntentStore()
	if s.Get() != nil || s.ClientSecret() != "" {
		t.Fatal("expected empty store")
	}

	intent := &entity.PaymentIntent{ClientSecret: "pi_1_secret_a", Amount: decimal.NewFromInt(100)}
	s.Set(intent)
	intent.ClientSecret = "mutated"

	got := s.Get()
	if got == nil || got.ClientSecret != "pi_1_secret_a" {
		t.Fatalf("expected stored copy, got %+v", got)
	}
	got.ClientSecret = "mutated-again"
	if s.ClientSecret() != "pi_1_secret_a" {
		t.Fatal("expected Get to return a copy")
	}

	s.Clear()
	if s.Get() != nil {
		t.Fatal("expected cleared store")
	}
}
