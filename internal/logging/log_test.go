// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/config"
	"github.com/USA-RedDragon/rtrproxy/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNewStdoutLogger(t *testing.T) {
	t.Parallel()
	logger, err := logging.New(config.LogLevelInfo, config.LogTargetStdout, "", "")
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewFileLogger(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rtrproxy.log")
	logger, err := logging.New(config.LogLevelDebug, config.LogTargetFile, path, "")
	require.NoError(t, err)
	logger.Info("hello")

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()
	_, err := logging.New("bogus", config.LogTargetStdout, "", "")
	require.Error(t, err)
}

func TestNewRejectsUnknownTarget(t *testing.T) {
	t.Parallel()
	_, err := logging.New(config.LogLevelInfo, "bogus", "", "")
	require.Error(t, err)
}
