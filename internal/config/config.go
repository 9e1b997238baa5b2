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

// Package config declares the on-disk configuration surface (spec.md
// section 6.4): a global section, named unit sections, and named
// target sections, loaded through configulator.
package config

import (
	"time"
)

// Config is the root of the configuration file.
type Config struct {
	LogLevel    LogLevel  `yaml:"log-level" default:"info"`
	LogTarget   LogTarget `yaml:"log-target" default:"stdout"`
	LogFile     string    `yaml:"log-file"`
	LogFacility string    `yaml:"log-facility"`

	HTTPListen []string `yaml:"http-listen"`
	HTTPFetch  HTTPFetch `yaml:"http-fetch"`

	Units   []Unit   `yaml:"units"`
	Targets []Target `yaml:"targets"`

	Metrics Metrics `yaml:"metrics"`
	Debug   bool    `yaml:"debug"`
}

// HTTPFetch carries the global HTTP client settings applied to every
// outbound fetch: json units and the RTR TLS trust store alike (spec.md
// section 6.4's `http-root-certs`/`http-user-agent`/`http-client-addr`/
// `http-proxies`).
type HTTPFetch struct {
	RootCerts  []string `yaml:"http-root-certs"`
	UserAgent  string   `yaml:"http-user-agent" default:"rtrproxy"`
	ClientAddr string   `yaml:"http-client-addr"`
	Proxies    []string `yaml:"http-proxies"`
}

// Metrics configures the ambient `/metrics` and `/status` endpoints
// (spec.md section 1's named-but-unspecified observability boundary,
// carried regardless of any Non-goal per the ambient-stack rule).
// Both are mounted on every configured global `http-listen` address
// alongside any `http` targets, rather than on a dedicated bind/port.
type Metrics struct {
	Enabled      bool   `yaml:"enabled" default:"true"`
	OTLPEndpoint string `yaml:"otlp-endpoint"`
}

// Unit is one configured unit section: Type selects which of the
// type-specific sub-structs below is meaningful.
type Unit struct {
	Name string   `yaml:"name"`
	Type UnitType `yaml:"type"`

	// rtr / rtr-tls
	Remote  string        `yaml:"remote"`
	Retry   time.Duration `yaml:"retry" default:"60s"`
	CACerts []string      `yaml:"cacerts"`

	// json
	URI       string        `yaml:"uri"`
	Refresh   time.Duration `yaml:"refresh" default:"10m"`
	Identity  string        `yaml:"identity"`
	TLS12     bool          `yaml:"tls-12"`
	NativeTLS bool          `yaml:"native-tls" default:"true"`

	// any / merge
	Sources []string `yaml:"sources"`
	Random  bool     `yaml:"random"`

	// slurm
	Source string   `yaml:"source"`
	Files  []string `yaml:"files"`
}

// Target is one configured target section: Type selects which of the
// type-specific fields below is meaningful.
type Target struct {
	Name string     `yaml:"name"`
	Type TargetType `yaml:"type"`

	// rtr / rtr-tls
	Listen        string        `yaml:"listen"`
	Unit          string        `yaml:"unit"`
	HistorySize   int           `yaml:"history-size" default:"10"`
	TargetRefresh uint32        `yaml:"refresh" default:"3600"`
	TargetRetry   uint32        `yaml:"retry" default:"600"`
	TargetExpire  uint32        `yaml:"expire" default:"7200"`
	ClientMetrics bool          `yaml:"client-metrics"`
	Certificate   string        `yaml:"certificate"`
	Key           string        `yaml:"key"`

	// http
	Path   string       `yaml:"path" default:"/json"`
	Format TargetFormat `yaml:"format" default:"json"`
}
