/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// DeviceToken is a push notification token registered by a user's device.
type DeviceToken struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_device_user_token" json:"user_id"`
	Token      string    `gorm:"type:varchar(4096);not null;uniqueIndex:idx_device_user_token" json:"token"`
	Platform   string    `gorm:"type:varchar(16)" json:"platform,omitempty"`
	LastSeenAt time.Time `gorm:"not null" json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (DeviceToken) TableName() string {
	return "device_tokens"
}
