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

// LogLevel represents the logging verbosity (spec.md section 6.4's
// global `log-level`).
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogTarget selects where log output goes (spec.md section 6.4's
// global `log-target`).
type LogTarget string

const (
	LogTargetStdout LogTarget = "stdout"
	LogTargetStderr LogTarget = "stderr"
	LogTargetFile   LogTarget = "file"
	LogTargetSyslog LogTarget = "syslog"
)

// UnitType names a recognized unit section kind (spec.md section 6.4).
type UnitType string

const (
	UnitTypeRTR    UnitType = "rtr"
	UnitTypeRTRTLS UnitType = "rtr-tls"
	UnitTypeJSON   UnitType = "json"
	UnitTypeAny    UnitType = "any"
	UnitTypeMerge  UnitType = "merge"
	UnitTypeSLURM  UnitType = "slurm"
)

// TargetType names a recognized target section kind (spec.md section
// 6.4).
type TargetType string

const (
	TargetTypeRTR    TargetType = "rtr"
	TargetTypeRTRTLS TargetType = "rtr-tls"
	TargetTypeHTTP   TargetType = "http"
)

// TargetFormat is the only recognized `format` value for an http
// target today (spec.md section 6.4 and 4.8).
type TargetFormat string

const TargetFormatJSON TargetFormat = "json"
