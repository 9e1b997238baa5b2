// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package jsonclient_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/units/jsonclient"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

const sampleDoc = `{
	"roas": [{"asn": "AS64496", "prefix": "192.0.2.0/24", "maxLength": 24}],
	"aspas": [{"customer_asid": 64497, "providers": [64498, 64499]}]
}`

func TestJSONClientFetchesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	u, err := jsonclient.New("test", srv.URL, time.Hour, "rtrproxy-test", jsonclient.HTTPOptions{}, discardLogger())
	require.NoError(t, err)
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, 1, len(p.Origins))
	require.Equal(t, uint32(64496), p.Origins[0].ASN)
	require.Len(t, p.ASPAs, 1)
	require.Equal(t, uint32(64497), p.ASPAs[0].Customer)
}

func TestJSONClientReadsFileRemote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	u, err := jsonclient.New("test", "file://"+path, time.Hour, "", jsonclient.HTTPOptions{}, discardLogger())
	require.NoError(t, err)
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, 1, len(p.Origins))
}

func TestJSONClientAcceptsLegacyASNString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"roas":[{"asn":64500,"prefix":"198.51.100.0/24","maxLength":24}]}`))
	}))
	defer srv.Close()

	u, err := jsonclient.New("test", srv.URL, time.Hour, "", jsonclient.HTTPOptions{}, discardLogger())
	require.NoError(t, err)
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, uint32(64500), p.Origins[0].ASN)
}
