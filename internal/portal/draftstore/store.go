package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-reservations/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrNoDraft is returned by Load when the session has no saved draft.
// Consumers must treat it as a hard redirect back to room selection; the
// downstream screens have no independent source of hotel/date/room context.
var ErrNoDraft = errors.New("no reservation draft in session")

const (
	draftKeyPrefix   = "reservation_draft:"
	infoKeyPrefix    = "payment_info:"
	profileKeyPrefix = "user_profile:"
)

// Store is the session-scoped state of the booking flow: the editable
// draft, the PaymentInfo mirror for the payment screen, and a best-effort
// profile cache. Keys are scoped to one browsing session and expire with
// it; nothing here survives logout.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

// SaveDraft persists the current selection, overwriting any prior unsent
// draft of the same session.
func (s *Store) SaveDraft(ctx context.Context, sessionID string, draft *models.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return s.Client.Set(ctx, draftKeyPrefix+sessionID, data, s.TTL).Err()
}

// LoadDraft returns the saved draft or ErrNoDraft.
func (s *Store) LoadDraft(ctx context.Context, sessionID string) (*models.Draft, error) {
	data, err := s.Client.Get(ctx, draftKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, err
	}
	var draft models.Draft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &draft, nil
}

// ClearDraft discards the session draft. Called once the reservation
// reaches pending and again after payment confirmation so a stale total
// can never leak into a later booking attempt.
func (s *Store) ClearDraft(ctx context.Context, sessionID string) error {
	return s.Client.Del(ctx, draftKeyPrefix+sessionID).Err()
}

// SavePaymentInfo mirrors the PaymentInfo for the active payment screen.
func (s *Store) SavePaymentInfo(ctx context.Context, sessionID string, info *models.PaymentInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode payment info: %w", err)
	}
	return s.Client.Set(ctx, infoKeyPrefix+sessionID, data, s.TTL).Err()
}

// LoadPaymentInfo returns the cached PaymentInfo or nil when none exists.
func (s *Store) LoadPaymentInfo(ctx context.Context, sessionID string) (*models.PaymentInfo, error) {
	data, err := s.Client.Get(ctx, infoKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info models.PaymentInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("failed to decode payment info: %w", err)
	}
	return &info, nil
}

func (s *Store) ClearPaymentInfo(ctx context.Context, sessionID string) error {
	return s.Client.Del(ctx, infoKeyPrefix+sessionID).Err()
}

// CacheProfile stores a fetched user profile to avoid redundant identity
// lookups. Best effort: failures are ignored by callers.
func (s *Store) CacheProfile(ctx context.Context, name string, profile *models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, profileKeyPrefix+name, data, s.TTL).Err()
}

// ClearProfile invalidates a cached profile after an artifact upload.
func (s *Store) ClearProfile(ctx context.Context, name string) error {
	return s.Client.Del(ctx, profileKeyPrefix+name).Err()
}

// LoadProfile returns the cached profile or nil when none exists.
func (s *Store) LoadProfile(ctx context.Context, name string) (*models.UserProfile, error) {
	data, err := s.Client.Get(ctx, profileKeyPrefix+name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var profile models.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
