// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package slurm_test

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/units/slurm"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSlurmUnitAppliesFileOnStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exceptions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prefixAssertions":[{"prefix":"203.0.113.0/24","asn":64499}]}`), 0o644))

	upstreamGate := gate.New()
	upstreamGate.Publish(payload.New([]payload.Origin{
		{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 64496},
	}, nil, nil))

	u := slurm.New("test", []string{path}, time.Hour, upstreamGate.Subscribe(), discardLogger())
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())
}

func TestSlurmUnitPassesThroughWhenFileMissing(t *testing.T) {
	upstreamGate := gate.New()
	upstreamGate.Publish(payload.New([]payload.Origin{
		{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 64496},
	}, nil, nil))

	u := slurm.New("test", []string{"/nonexistent/path.json"}, time.Hour, upstreamGate.Subscribe(), discardLogger())
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
}
