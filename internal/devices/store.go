/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package devices keeps the push notification tokens registered per user.
package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/logging"
	"github.com/friendsincode/familyzen/internal/models"
	"github.com/friendsincode/familyzen/internal/telemetry"
)

// Token length bounds accepted for registration.
const (
	MinTokenLength = 10
	MaxTokenLength = 4096
)

var (
	// ErrInvalidToken is returned for tokens outside the accepted length range.
	ErrInvalidToken = errors.New("invalid device token")
	// ErrTokenNotFound is returned when removing a token the user never registered.
	ErrTokenNotFound = errors.New("device token not found")
	// ErrMissingUser is returned when no owner is given.
	ErrMissingUser = errors.New("missing user id")
)

// ValidateToken checks the token length bounds.
func ValidateToken(token string) error {
	if n := len(token); n < MinTokenLength || n > MaxTokenLength {
		return fmt.Errorf("%w: length %d outside %d..%d", ErrInvalidToken, n, MinTokenLength, MaxTokenLength)
	}
	return nil
}

// Store persists device tokens keyed by user.
type Store struct {
	db     *gorm.DB
	bus    *events.Bus
	now    func() time.Time
	logger zerolog.Logger
}

// NewStore creates a device token store. bus may be nil.
func NewStore(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		bus:    bus,
		now:    time.Now,
		logger: logging.Component(logger, "devices"),
	}
}

// Register records token for userID. Registering the same token again only
// refreshes its last seen time. created reports whether a new row was added.
func (s *Store) Register(ctx context.Context, userID, token, platform string) (device *models.DeviceToken, created bool, err error) {
	if userID == "" {
		return nil, false, ErrMissingUser
	}
	if err := ValidateToken(token); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	var existing models.DeviceToken
	err = db.Where("user_id = ? AND token = ?", userID, token).First(&existing).Error
	switch {
	case err == nil:
		if err := s.touch(db, &existing, platform, now); err != nil {
			return nil, false, err
		}
		device = &existing
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = &models.DeviceToken{
			ID:         uuid.NewString(),
			UserID:     userID,
			Token:      token,
			Platform:   platform,
			LastSeenAt: now,
		}
		if err := db.Create(device).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, false, fmt.Errorf("create device token: %w", err)
			}
			// A concurrent registration won the insert.
			if err := db.Where("user_id = ? AND token = ?", userID, token).First(&existing).Error; err != nil {
				return nil, false, fmt.Errorf("reload device token: %w", err)
			}
			if err := s.touch(db, &existing, platform, now); err != nil {
				return nil, false, err
			}
			device = &existing
		} else {
			created = true
		}
	default:
		return nil, false, fmt.Errorf("lookup device token: %w", err)
	}

	telemetry.DeviceTokensRegisteredTotal.Inc()
	s.logger.Debug().Str("user_id", userID).Bool("created", created).Msg("device token registered")

	if s.bus != nil {
		s.bus.Publish(events.EventDeviceRegistered, events.Payload{
			"user_id":       userID,
			"resource_type": "device",
			"resource_id":   device.ID,
			"platform":      device.Platform,
			"created":       created,
		})
	}
	return device, created, nil
}

func (s *Store) touch(db *gorm.DB, device *models.DeviceToken, platform string, now time.Time) error {
	updates := map[string]any{"last_seen_at": now}
	if platform != "" {
		updates["platform"] = platform
	}
	if err := db.Model(device).Updates(updates).Error; err != nil {
		return fmt.Errorf("refresh device token: %w", err)
	}
	device.LastSeenAt = now
	if platform != "" {
		device.Platform = platform
	}
	return nil
}

// ListForUser returns userID's tokens, most recently seen first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	return tokens, nil
}

// CountForUser returns how many tokens userID has registered.
func (s *Store) CountForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.DeviceToken{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count device tokens: %w", err)
	}
	return n, nil
}

// Remove deletes one of userID's tokens.
func (s *Store) Remove(ctx context.Context, userID, token string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.DeviceToken{})
	if result.Error != nil {
		return fmt.Errorf("remove device token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}

	if s.bus != nil {
		s.bus.Publish(events.EventDeviceRemoved, events.Payload{
			"user_id":       userID,
			"resource_type": "device",
		})
	}
	return nil
}
