package tabstate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

func TestMemoryClaimIsOncePerTabAndSession(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	won, err := s.ClaimMarker(ctx, "tab-1", "cs_1")
	if err != nil || !won {
		t.Fatalf("expected first claim to win, got %v %v", won, err)
	}
	won, _ = s.ClaimMarker(ctx, "tab-1", "cs_1")
	if won {
		t.Fatal("expected second claim to lose")
	}
	won, _ = s.ClaimMarker(ctx, "tab-1", "cs_2")
	if !won {
		t.Fatal("expected distinct session to be claimable")
	}
	won, _ = s.ClaimMarker(ctx, "tab-2", "cs_1")
	if !won {
		t.Fatal("expected other tab to be independent")
	}

	marker, err := s.GetMarker(ctx, "tab-1", "cs_1")
	if err != nil || marker == nil || marker.State != entity.MarkerProcessing {
		t.Fatalf("expected processing marker, got %+v %v", marker, err)
	}
}

func TestMemoryConcurrentClaimsHaveOneWinner(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if won, _ := s.ClaimMarker(context.Background(), "tab-1", "cs_1"); won {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemorySaveMarkerOverwrites(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_, _ = s.ClaimMarker(ctx, "tab-1", "cs_1")

	err := s.SaveMarker(ctx, "tab-1", &entity.SessionMarker{SessionID: "cs_1", State: entity.MarkerFailed, Message: "Payment not found"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	marker, _ := s.GetMarker(ctx, "tab-1", "cs_1")
	if marker.State != entity.MarkerFailed || marker.Message != "Payment not found" {
		t.Fatalf("unexpected marker: %+v", marker)
	}
}

func TestMemoryFlagsAreOneShot(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if ok, _ := s.ConsumeFlag(ctx, "tab-1", FlagPaymentCompleted); ok {
		t.Fatal("expected unset flag")
	}
	_ = s.SetFlag(ctx, "tab-1", FlagPaymentCompleted)
	if ok, _ := s.ConsumeFlag(ctx, "tab-1", FlagPaymentCompleted); !ok {
		t.Fatal("expected flag to be set")
	}
	if ok, _ := s.ConsumeFlag(ctx, "tab-1", FlagPaymentCompleted); ok {
		t.Fatal("expected flag to be cleared after consume")
	}
}

func TestMemoryTabExpiresAndCloses(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = s.ClaimMarker(ctx, "tab-1", "cs_1")
	_, _ = s.ClaimMarker(ctx, "tab-2", "cs_1")

	now = now.Add(2 * time.Minute)
	if marker, _ := s.GetMarker(ctx, "tab-1", "cs_1"); marker != nil {
		t.Fatalf("expected expired tab to forget markers, got %+v", marker)
	}
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected one expired tab swept, got %d", removed)
	}

	_, _ = s.ClaimMarker(ctx, "tab-3", "cs_1")
	_ = s.CloseTab(ctx, "tab-3")
	if won, _ := s.ClaimMarker(ctx, "tab-3", "cs_1"); !won {
		t.Fatal("expected closed tab to start empty")
	}
}

func TestMemoryRequiresTabID(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if _, err := s.ClaimMarker(context.Background(), "  ", "cs_1"); !errors.Is(err, ErrTabRequired) {
		t.Fatalf("expected ErrTabRequired, got %v", err)
	}
}

func TestValidTabID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{id: "tab-1", want: true},
		{id: "3f2b7c1e-9a4d-4e1b-8c3a-2d5e6f7a8b9c", want: true},
		{id: "tab_A", want: true},
		{id: "", want: false},
		{id: "*", want: false},
		{id: "a*", want: false},
		{id: "tab?", want: false},
		{id: "[ab]", want: false},
		{id: "tab:1", want: false},
		{id: "tab 1", want: false},
		{id: strings.Repeat("a", MaxTabIDLength), want: true},
		{id: strings.Repeat("a", MaxTabIDLength+1), want: false},
	}

	for _, tc := range cases {
		if got := ValidTabID(tc.id); got != tc.want {
			t.Fatalf("ValidTabID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestMemoryRejectsInvalidTabID(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if err := s.CloseTab(context.Background(), "*"); !errors.Is(err, ErrTabInvalid) {
		t.Fatalf("expected ErrTabInvalid, got %v", err)
	}
}
