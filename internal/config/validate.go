// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLogLevel indicates an unrecognized log-level value.
	ErrInvalidLogLevel = errors.New("invalid log-level provided")
	// ErrInvalidLogTarget indicates an unrecognized log-target value.
	ErrInvalidLogTarget = errors.New("invalid log-target provided")
	// ErrLogFileRequired indicates log-target=file with no log-file set.
	ErrLogFileRequired = errors.New("log-file is required when log-target is file")
	// ErrUnitNameRequired indicates a unit section with no name.
	ErrUnitNameRequired = errors.New("unit name is required")
	// ErrDuplicateUnitName indicates two units share a name.
	ErrDuplicateUnitName = errors.New("duplicate unit name")
	// ErrInvalidUnitType indicates an unrecognized unit type.
	ErrInvalidUnitType = errors.New("invalid unit type provided")
	// ErrUnitRemoteRequired indicates an rtr/rtr-tls unit with no remote.
	ErrUnitRemoteRequired = errors.New("remote is required for rtr/rtr-tls units")
	// ErrUnitURIRequired indicates a json unit with no uri.
	ErrUnitURIRequired = errors.New("uri is required for json units")
	// ErrUnitSourcesRequired indicates an any/merge/slurm unit with no sources.
	ErrUnitSourcesRequired = errors.New("sources is required for this unit type")
	// ErrUnitFilesRequired indicates a slurm unit with no files.
	ErrUnitFilesRequired = errors.New("files is required for slurm units")
	// ErrTargetNameRequired indicates a target section with no name.
	ErrTargetNameRequired = errors.New("target name is required")
	// ErrDuplicateTargetName indicates two targets share a name.
	ErrDuplicateTargetName = errors.New("duplicate target name")
	// ErrInvalidTargetType indicates an unrecognized target type.
	ErrInvalidTargetType = errors.New("invalid target type provided")
	// ErrTargetListenRequired indicates an rtr/rtr-tls target with no listen.
	ErrTargetListenRequired = errors.New("listen is required for rtr/rtr-tls targets")
	// ErrTargetUnitRequired indicates a target with no unit reference.
	ErrTargetUnitRequired = errors.New("unit is required for every target")
	// ErrTargetTLSMaterialRequired indicates an rtr-tls target missing cert/key.
	ErrTargetTLSMaterialRequired = errors.New("certificate and key are required for rtr-tls targets")
	// ErrInvalidTargetFormat indicates an http target with an unsupported format.
	ErrInvalidTargetFormat = errors.New("invalid target format provided")
	// ErrMetricsRequireHTTPListen indicates metrics are enabled with no http-listen address to mount them on.
	ErrMetricsRequireHTTPListen = errors.New("metrics are enabled but no http-listen address is configured")
)

// Validate checks every invariant spec.md section 7 calls
// "configuration fatal": unknown component types, missing mandatory
// fields, and duplicate names. Dangling source references and cyclic
// graphs are the responsibility of internal/graph, which runs after
// this check.
func (c Config) Validate() error {
	if c.LogLevel != LogLevelDebug && c.LogLevel != LogLevelInfo &&
		c.LogLevel != LogLevelWarn && c.LogLevel != LogLevelError {
		return ErrInvalidLogLevel
	}
	if c.LogTarget != LogTargetStdout && c.LogTarget != LogTargetStderr &&
		c.LogTarget != LogTargetFile && c.LogTarget != LogTargetSyslog {
		return ErrInvalidLogTarget
	}
	if c.LogTarget == LogTargetFile && c.LogFile == "" {
		return ErrLogFileRequired
	}

	seenUnits := make(map[string]bool, len(c.Units))
	for _, u := range c.Units {
		if err := u.Validate(); err != nil {
			return err
		}
		if seenUnits[u.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateUnitName, u.Name)
		}
		seenUnits[u.Name] = true
	}

	seenTargets := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
		if seenTargets[t.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateTargetName, t.Name)
		}
		seenTargets[t.Name] = true
	}

	if c.Metrics.Enabled && len(c.HTTPListen) == 0 {
		return ErrMetricsRequireHTTPListen
	}

	return nil
}

// Validate checks one unit section's mandatory, type-specific fields.
func (u Unit) Validate() error {
	if u.Name == "" {
		return ErrUnitNameRequired
	}
	switch u.Type {
	case UnitTypeRTR, UnitTypeRTRTLS:
		if u.Remote == "" {
			return fmt.Errorf("%w: %q", ErrUnitRemoteRequired, u.Name)
		}
	case UnitTypeJSON:
		if u.URI == "" {
			return fmt.Errorf("%w: %q", ErrUnitURIRequired, u.Name)
		}
	case UnitTypeAny, UnitTypeMerge:
		if len(u.Sources) == 0 {
			return fmt.Errorf("%w: %q", ErrUnitSourcesRequired, u.Name)
		}
	case UnitTypeSLURM:
		if u.Source == "" {
			return fmt.Errorf("%w: %q", ErrUnitSourcesRequired, u.Name)
		}
		if len(u.Files) == 0 {
			return fmt.Errorf("%w: %q", ErrUnitFilesRequired, u.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidUnitType, u.Type)
	}
	return nil
}

// Validate checks one target section's mandatory, type-specific fields.
func (t Target) Validate() error {
	if t.Name == "" {
		return ErrTargetNameRequired
	}
	if t.Unit == "" {
		return fmt.Errorf("%w: %q", ErrTargetUnitRequired, t.Name)
	}
	switch t.Type {
	case TargetTypeRTR, TargetTypeRTRTLS:
		if t.Listen == "" {
			return fmt.Errorf("%w: %q", ErrTargetListenRequired, t.Name)
		}
		if t.Type == TargetTypeRTRTLS && (t.Certificate == "" || t.Key == "") {
			return fmt.Errorf("%w: %q", ErrTargetTLSMaterialRequired, t.Name)
		}
	case TargetTypeHTTP:
		if t.Format != TargetFormatJSON {
			return fmt.Errorf("%w: %q", ErrInvalidTargetFormat, t.Format)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTargetType, t.Type)
	}
	return nil
}
