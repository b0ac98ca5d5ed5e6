/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner turns a family's daily anchor times and chore list into an
// ordered agenda of timed events.
package planner

import (
	"strconv"
	"time"
)

// FormatVersion tags the plan layout returned to clients.
const FormatVersion = "demo-1"

// Fixed event ids, in emission order.
const (
	EventWake      = "wake"
	EventBreakfast = "break"
	EventSchool    = "school"
	EventStudy     = "study"
	EventDinner    = "dinner"
)

// Durations per event kind, in minutes.
const (
	WakeMinutes      = 10
	BreakfastMinutes = 20
	SchoolMinutes    = 15
	StudyMinutes     = 45
	DinnerMinutes    = 40
	ChoreMinutes     = 10
)

const (
	studyOffset      = 8 * time.Hour
	firstChoreOffset = 45 * time.Minute
	choreSpacing     = 10 * time.Minute
)

// BaseEventCount is the number of events emitted before any chore.
const BaseEventCount = 5

// AnchorTimes are the user-entered times other events are derived from.
type AnchorTimes struct {
	WakeUp      TimeOfDay `json:"wake_up" yaml:"wake_up"`
	SchoolStart TimeOfDay `json:"school_start" yaml:"school_start"`
	Dinner      TimeOfDay `json:"dinner" yaml:"dinner"`
}

// ChoreList is scheduled in order; position determines the chore's slot.
type ChoreList []string

// Input is a fully resolved, validated generation request.
type Input struct {
	AnchorTimes `yaml:",inline"`
	Chores      ChoreList `json:"chores" yaml:"chores"`
}

// ScheduledEvent is one entry of a plan.
type ScheduledEvent struct {
	ID              string    `json:"id" yaml:"id"`
	StartsAt        time.Time `json:"starts_at" yaml:"starts_at"`
	Title           string    `json:"title" yaml:"title"`
	DurationMinutes int       `json:"duration_min" yaml:"duration_min"`
}

// EndsAt returns the instant the event is expected to finish.
func (e ScheduledEvent) EndsAt() time.Time {
	return e.StartsAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// Plan is the ordered output of one generation.
type Plan struct {
	FamilyID      string           `json:"family_id" yaml:"family_id"`
	ReferenceDate time.Time        `json:"reference_date" yaml:"reference_date"`
	Received      Input            `json:"received" yaml:"received"`
	Events        []ScheduledEvent `json:"events" yaml:"events"`
	Version       string           `json:"version" yaml:"version"`
}

// DefaultAnchors returns 07:00 / 08:30 / 19:00.
func DefaultAnchors() AnchorTimes {
	return AnchorTimes{
		WakeUp:      TimeOfDay{Hour: 7},
		SchoolStart: TimeOfDay{Hour: 8, Minute: 30},
		Dinner:      TimeOfDay{Hour: 19},
	}
}

// DefaultChores returns a fresh copy of the default chore list.
func DefaultChores() ChoreList {
	return ChoreList{"Set table", "Tidy room"}
}

// Generate builds the agenda for ref's calendar date. The output order is fixed
// (wake, breakfast, school, study, dinner, chores) and is never re-sorted by time.
// Generate has no side effects and is safe for concurrent use.
func Generate(anchors AnchorTimes, chores ChoreList, ref time.Time) []ScheduledEvent {
	events := make([]ScheduledEvent, 0, BaseEventCount+len(chores))
	events = append(events,
		ScheduledEvent{ID: EventWake, StartsAt: anchors.WakeUp.On(ref), Title: "Wake up", DurationMinutes: WakeMinutes},
		ScheduledEvent{ID: EventBreakfast, StartsAt: anchors.WakeUp.On(ref), Title: "Breakfast", DurationMinutes: BreakfastMinutes},
		ScheduledEvent{ID: EventSchool, StartsAt: anchors.SchoolStart.On(ref), Title: "Go to school", DurationMinutes: SchoolMinutes},
		ScheduledEvent{ID: EventStudy, StartsAt: anchors.SchoolStart.OnPlus(ref, studyOffset), Title: "Homework", DurationMinutes: StudyMinutes},
		ScheduledEvent{ID: EventDinner, StartsAt: anchors.Dinner.On(ref), Title: "Family dinner", DurationMinutes: DinnerMinutes},
	)

	for i, chore := range chores {
		offset := firstChoreOffset + time.Duration(i)*choreSpacing
		events = append(events, ScheduledEvent{
			ID:              ChoreID(i),
			StartsAt:        anchors.Dinner.OnPlus(ref, offset),
			Title:           chore,
			DurationMinutes: ChoreMinutes,
		})
	}
	return events
}

// ChoreID returns the id of the chore at zero-based position i.
func ChoreID(i int) string {
	return "chore_" + strconv.Itoa(i+1)
}

// Build generates the events for in on ref's date and wraps them into a Plan.
func Build(familyID string, in Input, ref time.Time) Plan {
	y, m, d := ref.Date()
	return Plan{
		FamilyID:      familyID,
		ReferenceDate: time.Date(y, m, d, 0, 0, 0, 0, ref.Location()),
		Received:      in,
		Events:        Generate(in.AnchorTimes, in.Chores, ref),
		Version:       FormatVersion,
	}
}
