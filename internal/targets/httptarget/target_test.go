// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package httptarget_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/targets/httptarget"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHTTPTargetReturns503BeforeFirstPublish(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstreamGate := gate.New()
	tgt := httptarget.New("test", "", upstreamGate.Subscribe(), discardLogger())

	r := gin.New()
	tgt.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHTTPTargetServesDocumentAndHonorsETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstreamGate := gate.New()
	upstreamGate.Publish(payload.New([]payload.Origin{
		{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 64496},
	}, nil, nil))

	tgt := httptarget.New("test", "", upstreamGate.Subscribe(), discardLogger())
	r := gin.New()
	tgt.Register(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tgt.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		ROAs []struct {
			ASN    uint32 `json:"asn"`
			Prefix string `json:"prefix"`
		} `json:"roas"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.ROAs, 1)
	require.Equal(t, uint32(64496), doc.ROAs[0].ASN)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req2 := httptest.NewRequest(http.MethodGet, "/json", nil)
	req2.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusNotModified, w2.Code)
}
