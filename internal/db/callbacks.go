/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/telemetry"
)

const startedAtKey = "familyzen:started_at"

type statementHook struct {
	op       string
	register func(before, after func(*gorm.DB)) error
}

// RegisterCallbacks times every create, query, update and delete statement
// and exports the result as Prometheus metrics.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []statementHook{
		{op: "query", register: func(before, after func(*gorm.DB)) error {
			return errors.Join(
				cb.Query().Before("gorm:query").Register("familyzen:before_query", before),
				cb.Query().After("gorm:query").Register("familyzen:after_query", after),
			)
		}},
		{op: "create", register: func(before, after func(*gorm.DB)) error {
			return errors.Join(
				cb.Create().Before("gorm:create").Register("familyzen:before_create", before),
				cb.Create().After("gorm:create").Register("familyzen:after_create", after),
			)
		}},
		{op: "update", register: func(before, after func(*gorm.DB)) error {
			return errors.Join(
				cb.Update().Before("gorm:update").Register("familyzen:before_update", before),
				cb.Update().After("gorm:update").Register("familyzen:after_update", after),
			)
		}},
		{op: "delete", register: func(before, after func(*gorm.DB)) error {
			return errors.Join(
				cb.Delete().Before("gorm:delete").Register("familyzen:before_delete", before),
				cb.Delete().After("gorm:delete").Register("familyzen:after_delete", after),
			)
		}},
	}

	for _, h := range hooks {
		if err := h.register(markStart, observeStatement(h.op)); err != nil {
			return fmt.Errorf("%s hooks: %w", h.op, err)
		}
	}
	return nil
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(startedAtKey, time.Now())
}

func observeStatement(op string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}

		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(op, table).Observe(time.Since(started).Seconds())

		if kind := errorKind(tx.Error); kind != "" {
			telemetry.DatabaseErrorsTotal.WithLabelValues(op, kind).Inc()
		}
	}
}

// errorKind classifies a statement error. Missing rows are a normal outcome
// here and are not counted.
func errorKind(err error) string {
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return ""
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate_key"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "query_error"
	}
}

// UpdateConnectionMetrics publishes the current open connection count.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}

// RunConnectionMetrics refreshes pool metrics every interval until ctx ends.
func RunConnectionMetrics(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		UpdateConnectionMetrics(db)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
