/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/familyzen/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.DeviceToken{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := normalizeLegacyRoles(database); err != nil {
		return err
	}

	return nil
}

// normalizeLegacyRoles rewrites blank or retired role values so role checks
// only ever see admin, parent or child.
func normalizeLegacyRoles(database *gorm.DB) error {
	if err := database.Exec("UPDATE users SET role = ? WHERE LOWER(TRIM(role)) = ?", models.RoleAdmin, "platform_admin").Error; err != nil {
		return fmt.Errorf("normalize legacy admin role: %w", err)
	}
	if err := database.Exec("UPDATE users SET role = ? WHERE role IS NULL OR TRIM(role) = ''", models.RoleParent).Error; err != nil {
		return fmt.Errorf("normalize empty role: %w", err)
	}
	return nil
}
