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

// Package logging builds the process-wide slog.Logger from a loaded
// Config, the same log-level-to-tint-handler selection
// internal/cmd/root.go performs inline, pulled out so both cmd and
// tests construct a logger identically.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"

	"github.com/USA-RedDragon/rtrproxy/internal/config"
	"github.com/lmittmann/tint"
)

// New builds a slog.Logger for the given level/target/file/facility,
// per spec.md section 6.4's global logging options.
func New(level config.LogLevel, target config.LogTarget, file, facility string) (*slog.Logger, error) {
	slogLevel, err := toSlogLevel(level)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	switch target {
	case config.LogTargetStdout:
		w = os.Stdout
	case config.LogTargetStderr:
		w = os.Stderr
	case config.LogTargetFile:
		f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", file, err)
		}
		w = f
	case config.LogTargetSyslog:
		sw, err := syslogWriter(facility)
		if err != nil {
			return nil, fmt.Errorf("logging: dial syslog: %w", err)
		}
		w = sw
	default:
		return nil, fmt.Errorf("logging: unknown log-target %q", target)
	}

	return slog.New(tint.NewHandler(w, &tint.Options{Level: slogLevel})), nil
}

func toSlogLevel(level config.LogLevel) (slog.Level, error) {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug, nil
	case config.LogLevelInfo:
		return slog.LevelInfo, nil
	case config.LogLevelWarn:
		return slog.LevelWarn, nil
	case config.LogLevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown log-level %q", level)
	}
}

// syslogWriter dials the local syslog daemon at the named facility.
// log/syslog is the only ambient concern on the standard library in
// this tree: no third-party syslog client appears anywhere in the
// pack, so there is no library to reach for instead (see DESIGN.md).
func syslogWriter(facility string) (io.Writer, error) {
	f, err := parseFacility(facility)
	if err != nil {
		return nil, err
	}
	return syslog.New(f|syslog.LOG_INFO, "rtrproxy")
}

func parseFacility(facility string) (syslog.Priority, error) {
	switch facility {
	case "", "daemon":
		return syslog.LOG_DAEMON, nil
	case "local0":
		return syslog.LOG_LOCAL0, nil
	case "local1":
		return syslog.LOG_LOCAL1, nil
	case "local2":
		return syslog.LOG_LOCAL2, nil
	case "local3":
		return syslog.LOG_LOCAL3, nil
	case "local4":
		return syslog.LOG_LOCAL4, nil
	case "local5":
		return syslog.LOG_LOCAL5, nil
	case "local6":
		return syslog.LOG_LOCAL6, nil
	case "local7":
		return syslog.LOG_LOCAL7, nil
	default:
		return 0, fmt.Errorf("logging: unknown log-facility %q", facility)
	}
}
