package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/geoblock/internal/geoblock/common/iso3166"
	"github.com/haukened/geoblock/internal/geoblock/config"
	"github.com/haukened/geoblock/internal/geoblock/repos/archive"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestCountriesCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"countries"})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, iso3166.TableVersion)
	assert.Contains(t, text, "United States")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	assert.Len(t, lines, len(iso3166.All())+2)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, fmt.Sprintf("%s %s (iso3166 table %s)\n", appName, version, iso3166.TableVersion), out.String())
}

func TestServeCommand_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "extra"})
	assert.Error(t, cmd.Execute())
}

func TestRunServe_ConfigErrors(t *testing.T) {
	err := runServe(context.Background(), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("GEOBLOCK_ENV", "staging")
	err = runServe(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
}

func TestBuildApplication_MissingMMDB(t *testing.T) {
	t.Setenv("GEOBLOCK_GEO_PROVIDER", "mmdb")
	t.Setenv("GEOBLOCK_GEO_MMDB_PATH", filepath.Join(t.TempDir(), "missing.mmdb"))
	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = buildApplication(cfg)
	assert.Error(t, err)
}

func TestBuildApplication_BadArchivePath(t *testing.T) {
	t.Setenv("GEOBLOCK_ARCHIVE_PATH", filepath.Join(t.TempDir(), "no", "such", "dir", "a.db"))
	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = buildApplication(cfg)
	assert.Error(t, err)
}

// TestApplication_Integration runs the server end to end on a loopback port.
func TestApplication_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr := freeAddr(t)
	archivePath := filepath.Join(t.TempDir(), "attempts.db")
	t.Setenv("GEOBLOCK_LISTEN", addr)
	t.Setenv("GEOBLOCK_ARCHIVE_PATH", archivePath)
	t.Setenv("GEOBLOCK_LOG_LEVEL", "error")
	t.Setenv("GEOBLOCK_SWEEP_INTERVAL", "1s")

	cfg, err := config.Load()
	require.NoError(t, err)
	app, err := buildApplication(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appErr := make(chan error, 1)
	go func() { appErr <- app.Run(ctx) }()

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/api/countries/block", "application/json",
		strings.NewReader(`{"countryCode":"US","countryName":"United States"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(base + "/api/ip/check-block")
	require.NoError(t, err)
	var env struct {
		Success bool `json:"success"`
		Data    bool `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	_ = resp.Body.Close()
	assert.True(t, env.Success)
	assert.False(t, env.Data, "loopback callers are never blocked")

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	var metricsBody bytes.Buffer
	_, _ = metricsBody.ReadFrom(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, metricsBody.String(), `geoblock_ip_checks_total{result="local"} 1`)

	cancel()
	select {
	case err := <-appErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not shut down")
	}

	a, err := archive.Open(archivePath)
	require.NoError(t, err)
	defer a.Close()
	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
