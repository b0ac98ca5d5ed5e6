/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/logging"
	"github.com/friendsincode/familyzen/internal/models"
)

// DefaultQueryLimit applies when a query does not set a limit.
const DefaultQueryLimit = 100

// Service persists the audit trail. Entries arrive either from the event bus
// or through Log.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates an audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logging.Component(logger, "audit"),
		now:    time.Now,
	}
}

var recordedEvents = map[events.EventType]models.AuditAction{
	events.EventPlanGenerated:     models.AuditActionPlanGenerate,
	events.EventDeviceRegistered:  models.AuditActionDeviceRegister,
	events.EventDeviceRemoved:     models.AuditActionDeviceRemove,
	events.EventUserRegistered:    models.AuditActionUserRegister,
	events.EventUserLogin:         models.AuditActionUserLogin,
	events.EventAuditAPIKeyCreate: models.AuditActionAPIKeyCreate,
	events.EventAuditAPIKeyRevoke: models.AuditActionAPIKeyRevoke,
}

type pendingEntry struct {
	action  models.AuditAction
	payload events.Payload
}

// Start records bus events until ctx is cancelled. Writes are serialized
// through a single loop.
func (s *Service) Start(ctx context.Context) {
	pending := make(chan pendingEntry, 64)
	subs := make(map[events.EventType]events.Subscriber, len(recordedEvents))
	var forwarders sync.WaitGroup

	for eventType, action := range recordedEvents {
		action := action // per-iteration copy (go 1.21 loop semantics)
		sub := s.bus.Subscribe(eventType)
		subs[eventType] = sub
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			for payload := range sub {
				select {
				case pending <- pendingEntry{action: action, payload: payload}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	defer func() {
		for eventType, sub := range subs {
			s.bus.Unsubscribe(eventType, sub)
		}
		forwarders.Wait()
	}()

	s.logger.Info().Int("subscriptions", len(subs)).Msg("audit service started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case p := <-pending:
			entry := s.entryFromPayload(p.action, p.payload)
			if err := s.Log(ctx, entry); err != nil {
				s.logger.Error().Err(err).Str("action", string(p.action)).Msg("failed to record audit entry")
			}
		}
	}
}

// Payload keys lifted into their own columns. Everything else lands in
// Details.
var columnKeys = map[string]func(*models.AuditLog, any){
	"user_id": func(e *models.AuditLog, v any) {
		if id, ok := v.(string); ok && id != "" {
			e.UserID = &id
		}
	},
	"family_id": func(e *models.AuditLog, v any) {
		if id, ok := familyIDFrom(v); ok {
			e.FamilyID = &id
		}
	},
	"user_email":    stringColumn(func(e *models.AuditLog) *string { return &e.UserEmail }),
	"resource_type": stringColumn(func(e *models.AuditLog) *string { return &e.ResourceType }),
	"resource_id":   stringColumn(func(e *models.AuditLog) *string { return &e.ResourceID }),
	"ip_address":    stringColumn(func(e *models.AuditLog) *string { return &e.IPAddress }),
	"user_agent":    stringColumn(func(e *models.AuditLog) *string { return &e.UserAgent }),
}

func stringColumn(field func(*models.AuditLog) *string) func(*models.AuditLog, any) {
	return func(e *models.AuditLog, v any) {
		if s, ok := v.(string); ok {
			*field(e) = s
		}
	}
}

func (s *Service) entryFromPayload(action models.AuditAction, payload events.Payload) *models.AuditLog {
	entry := &models.AuditLog{
		Action:  action,
		Details: make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		if set, ok := columnKeys[k]; ok {
			set(entry, v)
			continue
		}
		entry.Details[k] = v
	}
	return entry
}

// familyIDFrom accepts a family key as a decimal string or an integer.
func familyIDFrom(v any) (int64, bool) {
	switch id := v.(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Log stores entry, filling in its ID and timestamps when unset.
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	now := s.now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}
	s.logger.Debug().Str("action", string(entry.Action)).Str("id", entry.ID).Msg("audit entry recorded")
	return nil
}

// QueryFilters narrows an audit query. Nil fields do not filter.
type QueryFilters struct {
	UserID    *string
	FamilyID  *int64
	Action    *models.AuditAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

func (f QueryFilters) scope(tx *gorm.DB) *gorm.DB {
	if f.UserID != nil {
		tx = tx.Where("user_id = ?", *f.UserID)
	}
	if f.FamilyID != nil {
		tx = tx.Where("family_id = ?", *f.FamilyID)
	}
	if f.Action != nil {
		tx = tx.Where("action = ?", *f.Action)
	}
	if f.StartTime != nil {
		tx = tx.Where("timestamp >= ?", *f.StartTime)
	}
	if f.EndTime != nil {
		tx = tx.Where("timestamp <= ?", *f.EndTime)
	}
	return tx
}

// Query returns one page of matching entries, newest first, together with
// the total number of matches.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	matching := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.AuditLog{}).Scopes(filters.scope)
	}

	var total int64
	if err := matching().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var logs []models.AuditLog
	err := matching().Order("timestamp DESC").Limit(limit).Offset(filters.Offset).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
