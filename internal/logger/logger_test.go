// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/internal/logger"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logger.ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, logger.ParseLevel("warning"))
	require.Equal(t, zerolog.ErrorLevel, logger.ParseLevel("error"))
	require.Equal(t, zerolog.InfoLevel, logger.ParseLevel("unknown"))
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "warn")

	log.Info().Msg("skipped")
	require.Zero(t, buf.Len())

	log.Warn().Uint64("fee", 2036).Msg("written")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "written", entry["message"])
	require.EqualValues(t, 2036, entry["fee"])
}

func TestInitWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "inscriber.log")

	closer, err := logger.Init("info", true, file)
	require.NoError(t, err)

	logger.Orchestrator.Info().Str("flow", "mint").Msg("started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "orchestrator", entry["component"])
	require.Equal(t, "mint", entry["flow"])
}
