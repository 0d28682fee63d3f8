// Package storage provides the persistent key-value store that owns all
// durable client state. In-memory state elsewhere in the client is a cache of
// this store, not the source of truth, and is re-derived from it on process
// start.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// Well-known keys. All structured values are JSON-encoded.
const (
	KeyAuthToken               = "auth_token"
	KeyUserData                = "user_data"
	KeyAppSettings             = "app_settings"
	KeyOnboardingCompleted     = "onboarding_completed"
	KeyLastSyncTime            = "last_sync_time"
	KeyCachedTasks             = "cached_tasks"
	KeyNotificationPermissions = "notification_permissions"
)

// Store defines durable get/set/remove of string-keyed values.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}

// GetJSON reads key and unmarshals its value into v.
func GetJSON(s Store, key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Set(key, data)
}

// cacheEntry wraps a cached value with its expiry.
type cacheEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpireAt  time.Time       `json:"expire_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// SetCached stores v under key with a time-to-live. An expired entry behaves
// as absent on read.
func SetCached(s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	now := time.Now()
	return SetJSON(s, key, cacheEntry{
		Value:     raw,
		ExpireAt:  now.Add(ttl),
		CreatedAt: now,
	})
}

// GetCached reads a value stored with SetCached. Expired entries are removed
// and reported as ErrNotFound.
func GetCached(s Store, key string, v any) error {
	var entry cacheEntry
	if err := GetJSON(s, key, &entry); err != nil {
		return err
	}
	if time.Now().After(entry.ExpireAt) {
		// Best effort; a failed delete still reports the entry as absent.
		_ = s.Delete(key)
		return fmt.Errorf("%s: expired: %w", key, ErrNotFound)
	}
	if err := json.Unmarshal(entry.Value, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
