// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package tracing_test

import (
	"context"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/tracing"
	"github.com/stretchr/testify/require"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Parallel()
	cleanup, err := tracing.Setup(context.Background(), "", "rtrproxy-test")
	require.NoError(t, err)
	require.NoError(t, cleanup(context.Background()))
}

func TestStartSpanReturnsUsableSpan(t *testing.T) {
	t.Parallel()
	_, err := tracing.Setup(context.Background(), "", "rtrproxy-test")
	require.NoError(t, err)

	ctx, span := tracing.StartSpan(context.Background(), "json.fetch")
	require.NotNil(t, ctx)
	span.End()
}
