/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/logging"
	"github.com/friendsincode/familyzen/internal/telemetry"
)

// Cache stores generated plans for the rest of their reference day.
type Cache interface {
	GetPlan(ctx context.Context, familyID string, in Input, ref time.Time) (*Plan, bool)
	SetPlan(ctx context.Context, plan *Plan) error
}

// Invalidator is implemented by caches that can drop every entry of a family.
type Invalidator interface {
	InvalidateFamily(ctx context.Context, familyID string) error
}

// ErrNoInvalidation is returned when the configured cache cannot be invalidated
// or no cache is configured.
var ErrNoInvalidation = errors.New("plan cache does not support invalidation")

// Service wraps Generate for request handlers: it captures the reference date,
// records metrics and publishes plan events.
type Service struct {
	loc    *time.Location
	now    func() time.Time
	bus    *events.Bus
	cache  Cache
	logger zerolog.Logger
}

// NewService constructs a planner service. A nil location means time.Local.
func NewService(loc *time.Location, bus *events.Bus, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		loc:    loc,
		now:    time.Now,
		bus:    bus,
		logger: logging.Component(logger, "planner"),
	}
}

// SetClock replaces the clock used to capture reference dates.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetCache wires an optional plan cache.
func (s *Service) SetCache(c Cache) {
	s.cache = c
}

// InvalidateFamily drops the cached plans of familyID.
func (s *Service) InvalidateFamily(ctx context.Context, familyID string) error {
	inv, ok := s.cache.(Invalidator)
	if !ok {
		return ErrNoInvalidation
	}
	if err := inv.InvalidateFamily(ctx, familyID); err != nil {
		return err
	}
	s.logger.Info().Str("family_id", familyID).Msg("plan cache invalidated")
	return nil
}

// ReferenceDate reads the clock once, in the service location.
func (s *Service) ReferenceDate() time.Time {
	return s.now().In(s.loc)
}

// Suggest resolves req and generates today's plan for familyID.
func (s *Service) Suggest(ctx context.Context, familyID string, req Request) (*Plan, error) {
	ctx, span := telemetry.StartSpan(ctx, "planner.Suggest", telemetry.AttrFamilyID.String(familyID))
	defer span.End()

	ref := s.ReferenceDate()
	in, err := req.Resolve()
	if err != nil {
		telemetry.PlansGeneratedTotal.WithLabelValues("invalid_input").Inc()
		telemetry.RecordError(span, err)
		s.logger.Debug().Err(err).Str("family_id", familyID).Msg("rejected plan request")
		return nil, err
	}

	plan := s.Plan(ctx, familyID, in, ref)
	span.SetAttributes(
		telemetry.AttrEventCount.Int(len(plan.Events)),
		telemetry.AttrChoreCount.Int(len(in.Chores)),
	)
	return plan, nil
}

// Plan generates the plan for an already resolved input and reference date.
func (s *Service) Plan(ctx context.Context, familyID string, in Input, ref time.Time) *Plan {
	if s.cache != nil {
		cached, ok := s.cache.GetPlan(ctx, familyID, in, ref)
		trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrCacheHit.Bool(ok))
		if ok {
			telemetry.PlansGeneratedTotal.WithLabelValues("cached").Inc()
			return cached
		}
	}

	plan := Build(familyID, in, ref)
	telemetry.PlansGeneratedTotal.WithLabelValues("generated").Inc()
	telemetry.PlanEventsCount.Observe(float64(len(plan.Events)))

	if s.cache != nil {
		if err := s.cache.SetPlan(ctx, &plan); err != nil {
			s.logger.Warn().Err(err).Str("family_id", familyID).Msg("failed to cache plan")
		}
	}

	if s.bus != nil {
		s.bus.Publish(events.EventPlanGenerated, events.Payload{
			"family_id":      familyID,
			"reference_date": plan.ReferenceDate.Format(time.DateOnly),
			"event_count":    len(plan.Events),
			"chore_count":    len(in.Chores),
		})
	}

	s.logger.Debug().
		Str("family_id", familyID).
		Int("events", len(plan.Events)).
		Msg("plan generated")
	return &plan
}
