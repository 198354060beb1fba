package store

import (
	"sync"

	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

// IntentStore holds at most one active PaymentIntent. It is never persisted, so a
// restart or a new tab always starts empty.
type IntentStore struct {
	mu     sync.RWMutex
	intent *entity.PaymentIntent
}

func NewIntentStore() *IntentStore {
	return &IntentStore{}
}

func (s *IntentStore) Set(intent *entity.PaymentIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent == nil {
		s.intent = nil
		return
	}
	copyItem := *intent
	s.intent = &copyItem
}

// Get returns a copy of the active intent, or nil.
func (s *IntentStore) Get() *entity.PaymentIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.intent == nil {
		return nil
	}
	copyItem := *s.intent
	return &copyItem
}

func (s *IntentStore) ClientSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.intent == nil {
		return ""
	}
	return s.intent.ClientSecret
}

func (s *IntentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = nil
}
