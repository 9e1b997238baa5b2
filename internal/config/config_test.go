// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package config_test

import (
	"errors"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/config"
)

func makeValidConfig() config.Config {
	return config.Config{
		LogLevel:  config.LogLevelInfo,
		LogTarget: config.LogTargetStdout,
		Units: []config.Unit{
			{Name: "upstream", Type: config.UnitTypeRTR, Remote: "rtr.example.net:323"},
		},
		Targets: []config.Target{
			{Name: "export", Type: config.TargetTypeHTTP, Unit: "upstream", Format: config.TargetFormatJSON},
		},
		Metrics:    config.Metrics{Enabled: true},
		HTTPListen: []string{"127.0.0.1:8080"},
	}
}

func TestConfigValidateValid(t *testing.T) {
	t.Parallel()
	if err := makeValidConfig().Validate(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestConfigValidateInvalidLogLevel(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.LogLevel = "trace"
	if !errors.Is(c.Validate(), config.ErrInvalidLogLevel) {
		t.Errorf("expected ErrInvalidLogLevel, got %v", c.Validate())
	}
}

func TestConfigValidateLogFileRequiredForFileTarget(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.LogTarget = config.LogTargetFile
	if !errors.Is(c.Validate(), config.ErrLogFileRequired) {
		t.Errorf("expected ErrLogFileRequired, got %v", c.Validate())
	}
}

func TestConfigValidateDuplicateUnitName(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.Units = append(c.Units, config.Unit{Name: "upstream", Type: config.UnitTypeRTR, Remote: "other:323"})
	if !errors.Is(c.Validate(), config.ErrDuplicateUnitName) {
		t.Errorf("expected ErrDuplicateUnitName, got %v", c.Validate())
	}
}

func TestUnitValidateRequiresTypeSpecificFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		unit    config.Unit
		wantErr error
	}{
		{"empty name", config.Unit{Type: config.UnitTypeRTR, Remote: "x:323"}, config.ErrUnitNameRequired},
		{"rtr missing remote", config.Unit{Name: "u", Type: config.UnitTypeRTR}, config.ErrUnitRemoteRequired},
		{"json missing uri", config.Unit{Name: "u", Type: config.UnitTypeJSON}, config.ErrUnitURIRequired},
		{"any missing sources", config.Unit{Name: "u", Type: config.UnitTypeAny}, config.ErrUnitSourcesRequired},
		{"slurm missing files", config.Unit{Name: "u", Type: config.UnitTypeSLURM, Source: "s"}, config.ErrUnitFilesRequired},
		{"unknown type", config.Unit{Name: "u", Type: "bogus"}, config.ErrInvalidUnitType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.unit.Validate(), tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, tt.unit.Validate())
			}
		})
	}
}

func TestConfigValidateMetricsRequireHTTPListen(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.HTTPListen = nil
	if !errors.Is(c.Validate(), config.ErrMetricsRequireHTTPListen) {
		t.Errorf("expected ErrMetricsRequireHTTPListen, got %v", c.Validate())
	}
}

func TestTargetValidateRTRTLSRequiresCertAndKey(t *testing.T) {
	t.Parallel()
	target := config.Target{Name: "t", Type: config.TargetTypeRTRTLS, Unit: "u", Listen: "0.0.0.0:8323"}
	if !errors.Is(target.Validate(), config.ErrTargetTLSMaterialRequired) {
		t.Errorf("expected ErrTargetTLSMaterialRequired, got %v", target.Validate())
	}
}

func TestResolveRelativePathsRewritesSLURMFiles(t *testing.T) {
	t.Parallel()
	c := config.Config{
		Units: []config.Unit{
			{Name: "local", Type: config.UnitTypeSLURM, Source: "upstream", Files: []string{"exceptions.json", "/etc/rtrproxy/abs.json"}},
		},
	}
	c.ResolveRelativePaths("/etc/rtrproxy")
	want := []string{"/etc/rtrproxy/exceptions.json", "/etc/rtrproxy/abs.json"}
	for i, f := range c.Units[0].Files {
		if f != want[i] {
			t.Errorf("file %d: expected %q, got %q", i, want[i], f)
		}
	}
}
