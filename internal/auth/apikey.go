/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/models"
)

// Key format: fz_ followed by hex of APIKeyRandomBytes random bytes.
const (
	APIKeyPrefix      = "fz_"
	APIKeyRandomBytes = 24
	displayPrefixLen  = len(APIKeyPrefix) + 8
)

// Expiration bounds for API keys, in days.
const (
	DefaultAPIKeyDays = 90
	MaxAPIKeyDays     = 365
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyExpired  = errors.New("api key expired")
	ErrAPIKeyRevoked  = errors.New("api key revoked")
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidExpiry  = errors.New("invalid api key expiry")
)

// APIKeyExpiry converts a requested lifetime in days into a duration. Zero
// selects the default and values above the maximum are clamped.
func APIKeyExpiry(days int) (time.Duration, error) {
	switch {
	case days < 0:
		return 0, ErrInvalidExpiry
	case days == 0:
		days = DefaultAPIKeyDays
	case days > MaxAPIKeyDays:
		days = MaxAPIKeyDays
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func newKeyMaterial() (plaintext string, err error) {
	buf := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// KeyStore issues, validates and revokes API keys.
type KeyStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewKeyStore creates a KeyStore backed by db.
func NewKeyStore(db *gorm.DB) *KeyStore {
	return &KeyStore{db: db, now: time.Now}
}

// Issue creates and stores a key for userID. The plaintext is returned once
// and never persisted.
func (s *KeyStore) Issue(ctx context.Context, userID, name string, days int) (string, *models.APIKey, error) {
	lifetime, err := APIKeyExpiry(days)
	if err != nil {
		return "", nil, err
	}
	plaintext, err := newKeyMaterial()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	key := &models.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   hashAPIKey(plaintext),
		KeyPrefix: plaintext[:displayPrefixLen],
		ExpiresAt: now.Add(lifetime),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}
	return plaintext, key, nil
}

// Validate resolves plaintext into the owner's claims and records the use.
func (s *KeyStore) Validate(ctx context.Context, plaintext string) (*Claims, error) {
	if !strings.HasPrefix(plaintext, APIKeyPrefix) {
		return nil, ErrAPIKeyNotFound
	}
	db := s.db.WithContext(ctx)

	var key models.APIKey
	err := db.Where("key_hash = ?", hashAPIKey(plaintext)).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch key.StatusAt(now) {
	case models.APIKeyRevoked:
		return nil, ErrAPIKeyRevoked
	case models.APIKeyExpired:
		return nil, ErrAPIKeyExpired
	}

	var user models.User
	err = db.First(&user, "id = ?", key.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	// Usage tracking must not fail the request.
	_ = db.Model(&key).Update("last_used_at", now).Error

	claims := ClaimsForUser(&user)
	return &claims, nil
}

// Revoke marks an active key of userID as revoked. Unknown, foreign and
// already revoked keys all report ErrAPIKeyNotFound.
func (s *KeyStore) Revoke(ctx context.Context, keyID, userID string) error {
	result := s.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", keyID, userID).
		Update("revoked_at", s.now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// List returns the keys of userID, newest first.
func (s *KeyStore) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

// Now exposes the store clock so listings agree with validation.
func (s *KeyStore) Now() time.Time {
	return s.now()
}
