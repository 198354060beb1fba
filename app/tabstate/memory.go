package tabstate

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

type tabEntry struct {
	markers   map[string]entity.SessionMarker
	flags     map[string]struct{}
	expiresAt time.Time
}

type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	tabs map[string]*tabEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTabTTL
	}
	return &MemoryStore{
		ttl:  ttl,
		now:  time.Now,
		tabs: make(map[string]*tabEntry),
	}
}

// tab returns the live entry for tabID, creating it when create is set. Caller holds mu.
func (s *MemoryStore) tab(tabID string, create bool) *tabEntry {
	now := s.now()
	entry, ok := s.tabs[tabID]
	if ok && now.After(entry.expiresAt) {
		delete(s.tabs, tabID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		entry = &tabEntry{
			markers: make(map[string]entity.SessionMarker),
			flags:   make(map[string]struct{}),
		}
		s.tabs[tabID] = entry
	}
	entry.expiresAt = now.Add(s.ttl)
	return entry
}

func (s *MemoryStore) GetMarker(_ context.Context, tabID, sessionID string) (*entity.SessionMarker, error) {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.tab(tabID, false)
	if entry == nil {
		return nil, nil
	}
	marker, ok := entry.markers[sessionID]
	if !ok {
		return nil, nil
	}
	return &marker, nil
}

func (s *MemoryStore) ClaimMarker(_ context.Context, tabID, sessionID string) (bool, error) {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.tab(tabID, true)
	if _, exists := entry.markers[sessionID]; exists {
		return false, nil
	}
	entry.markers[sessionID] = entity.SessionMarker{
		SessionID: sessionID,
		State:     entity.MarkerProcessing,
		MarkedAt:  s.now().UTC(),
	}
	return true, nil
}

func (s *MemoryStore) SaveMarker(_ context.Context, tabID string, marker *entity.SessionMarker) error {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return err
	}
	if marker == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab(tabID, true).markers[marker.SessionID] = *marker
	return nil
}

func (s *MemoryStore) SetFlag(_ context.Context, tabID, name string) error {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab(tabID, true).flags[name] = struct{}{}
	return nil
}

func (s *MemoryStore) ConsumeFlag(_ context.Context, tabID, name string) (bool, error) {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.tab(tabID, false)
	if entry == nil {
		return false, nil
	}
	if _, ok := entry.flags[name]; !ok {
		return false, nil
	}
	delete(entry.flags, name)
	return true, nil
}

func (s *MemoryStore) CloseTab(_ context.Context, tabID string) error {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tabs, tabID)
	return nil
}

// Sweep drops expired tabs and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.tabs {
		if now.After(entry.expiresAt) {
			delete(s.tabs, id)
			removed++
		}
	}
	return removed
}
