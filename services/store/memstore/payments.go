package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/supplements-store/services/store/payments"
)

func (s *Store) Create(_ context.Context, intent *payments.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	intent.CreatedAt = now
	intent.UpdatedAt = now
	s.intents[intent.ID] = *intent
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*payments.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, payments.ErrIntentNotFound.With("intent_id", id.String())
	}
	return &intent, nil
}

func (s *Store) GetByCharge(_ context.Context, provider payments.Provider, chargeID string) (*payments.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, intent := range s.intents {
		if intent.Provider == provider && intent.ChargeID == chargeID {
			return &intent, nil
		}
	}
	return nil, payments.ErrIntentNotFound.With("charge_id", chargeID)
}

func (s *Store) MarkCompleted(_ context.Context, id uuid.UUID, folio int64) error {
	return s.updateIntent(id, func(intent *payments.Intent) {
		intent.Status = payments.IntentCompleted
		intent.Folio = folio
		intent.FailureReason = ""
	})
}

func (s *Store) MarkStatus(_ context.Context, id uuid.UUID, status payments.IntentStatus, reason string) error {
	return s.updateIntent(id, func(intent *payments.Intent) {
		intent.Status = status
		intent.FailureReason = reason
	})
}

func (s *Store) updateIntent(id uuid.UUID, apply func(*payments.Intent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return payments.ErrIntentNotFound.With("intent_id", id.String())
	}
	apply(&intent)
	intent.UpdatedAt = s.now()
	s.intents[id] = intent
	return nil
}

func (s *Store) ExpirePending(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for id, intent := range s.intents {
		if intent.Status == payments.IntentPending && intent.CreatedAt.Before(olderThan) {
			intent.Status = payments.IntentExpired
			intent.UpdatedAt = s.now()
			s.intents[id] = intent
			expired++
		}
	}
	return expired, nil
}

func (s *Store) CountByStatus(_ context.Context, status payments.IntentStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, intent := range s.intents {
		if intent.Status == status {
			count++
		}
	}
	return count, nil
}
