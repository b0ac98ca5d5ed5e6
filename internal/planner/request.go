/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"bytes"
	"encoding/json"
)

// Request is the raw, partially specified input as sent by clients.
// Absent fields fall back to their defaults during Resolve.
type Request struct {
	WakeUp      Optional[string]   `json:"wake_up"`
	SchoolStart Optional[string]   `json:"school_start"`
	Dinner      Optional[string]   `json:"dinner"`
	Chores      Optional[[]string] `json:"chores"`
}

// UnmarshalJSON decodes a request body. A missing field stays Absent. An
// explicit "chores": null means no chores, while null anchor times keep their
// defaults.
func (r *Request) UnmarshalJSON(b []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if raw, ok := fields["chores"]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		p.Chores = Present([]string{})
	}

	*r = Request(p)
	return nil
}

// Resolve applies defaults and validates every anchor time. The first invalid
// anchor aborts resolution with an *InvalidTimeFormatError.
func (r Request) Resolve() (Input, error) {
	defaults := DefaultAnchors()
	in := Input{AnchorTimes: defaults}

	fields := []struct {
		name string
		raw  Optional[string]
		dst  *TimeOfDay
	}{
		{"wake_up", r.WakeUp, &in.WakeUp},
		{"school_start", r.SchoolStart, &in.SchoolStart},
		{"dinner", r.Dinner, &in.Dinner},
	}
	for _, f := range fields {
		raw, ok := f.raw.Get()
		if !ok {
			continue
		}
		parsed, err := ParseTimeOfDay(raw)
		if err != nil {
			return Input{}, &InvalidTimeFormatError{Field: f.name, Value: raw}
		}
		*f.dst = parsed
	}

	if chores, ok := r.Chores.Get(); ok {
		in.Chores = append(ChoreList{}, chores...)
	} else {
		in.Chores = DefaultChores()
	}
	return in, nil
}
