/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import "runtime"

// Version is the current version of FamilyZen.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/familyzen/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the VCS revision, also set via ldflags.
var Commit = "unknown"

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Current returns the build information of the running binary.
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
	}
}

// String formats the build for CLI output.
func (i Info) String() string {
	return "familyzen " + i.Version + " (" + i.Commit + ", " + i.GoVersion + ")"
}
