package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-reminders/utils"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")
	out, err := runCLI(t, "parse", "--config", missing, "--now", "2026-10-15T09:00:00-03:00",
		"dentista", "amanhã", "às", "3", "da", "tarde")
	require.NoError(t, err)

	var result struct {
		Matched bool `json:"matched"`
		Draft   struct {
			Text      string `json:"text"`
			Date      string `json:"date"`
			Time      string `json:"time"`
			Frequency string `json:"frequency"`
		} `json:"draft"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.True(t, result.Matched)
	assert.Equal(t, "dentista", result.Draft.Text)
	assert.Equal(t, "2026-10-16", result.Draft.Date)
	assert.Equal(t, "15:00", result.Draft.Time)
	assert.Equal(t, "once", result.Draft.Frequency)
}

func TestParseCommandNoMatch(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")
	out, err := runCLI(t, "parse", "--config", missing, "--now", "2026-10-15T09:00:00-03:00", "oi")
	require.NoError(t, err)
	assert.Contains(t, out, `"matched": false`)
	assert.NotContains(t, out, `"draft"`)
}

func TestParseCommandRejectsBadNow(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")
	_, err := runCLI(t, "parse", "--config", missing, "--now", "ieri", "oi")
	assert.Error(t, err)
}

func TestOpenStoreBolt(t *testing.T) {
	cfg := &utils.Config{
		Store: utils.StoreConfig{Backend: utils.BackendBolt},
		Bolt:  utils.BoltConfig{Path: filepath.Join(t.TempDir(), "lembretes.db")},
	}
	store, err := openStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfg.Store.Backend = "postgres"
	_, err = openStore(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
