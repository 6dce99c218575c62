package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/salonbook/mapsync/internal/config"
	"github.com/salonbook/mapsync/internal/mapview"
	"github.com/salonbook/mapsync/internal/source/store"
	"github.com/salonbook/mapsync/internal/surface/memory"
	"github.com/salonbook/mapsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMapConfig() config.MapConfig {
	return config.MapConfig{
		AccessToken: "pk.test",
		Center:      core.Position{Longitude: 0, Latitude: 0},
		Zoom:        3,
		Focus:       core.DefaultFocusOptions(),
	}
}

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		planFocus, planFit, token = "", false, ""
	})
}

func TestRunPlan_WritesScene(t *testing.T) {
	resetFlags(t)
	planFocus = "s1"

	desired := []core.MarkerDescriptor{
		{ID: "s1", DisplayName: "Studio Uno", Position: core.Position{Longitude: -43.2, Latitude: -22.9}},
		{ID: "s2", DisplayName: "Corte Fino", Position: core.Position{Longitude: -46.6, Latitude: -23.5}},
	}

	var buf bytes.Buffer
	require.NoError(t, runPlan(context.Background(), &buf, testMapConfig(), desired, discardLogger()))

	var scene memory.Scene
	require.NoError(t, json.Unmarshal(buf.Bytes(), &scene))
	require.Len(t, scene.Markers, 2)
	assert.Equal(t, "Corte Fino", scene.Markers[0].PopupText)
	assert.Equal(t, "Studio Uno", scene.Markers[1].PopupText)
	assert.True(t, scene.Markers[1].PopupOpen)
	assert.Equal(t, core.Position{Longitude: -43.2, Latitude: -22.9}, scene.Viewport.Center)
	assert.Equal(t, 15.0, scene.Viewport.Zoom)
	assert.False(t, scene.Disposed)
}

func TestRunPlan_MissingToken(t *testing.T) {
	resetFlags(t)
	cfg := testMapConfig()
	cfg.AccessToken = ""

	err := runPlan(context.Background(), io.Discard, cfg, nil, discardLogger())
	assert.ErrorIs(t, err, mapview.ErrMissingAccessToken)
}

func TestRunPlan_TokenFlagOverrides(t *testing.T) {
	resetFlags(t)
	token = "pk.flag"
	cfg := testMapConfig()
	cfg.AccessToken = ""

	assert.NoError(t, runPlan(context.Background(), io.Discard, cfg, nil, discardLogger()))
}

func TestViewConfig_Fit(t *testing.T) {
	resetFlags(t)
	desired := []core.MarkerDescriptor{
		{ID: "a", Position: core.Position{Longitude: 10, Latitude: 20}},
		{ID: "b", Position: core.Position{Longitude: 20, Latitude: 40}},
	}

	cfg := viewConfig(testMapConfig(), desired, true, discardLogger())
	assert.Equal(t, core.Position{Longitude: 15, Latitude: 30}, cfg.View.Center)

	cfg = viewConfig(testMapConfig(), desired, false, discardLogger())
	assert.Equal(t, core.Position{}, cfg.View.Center)
}

func TestReadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shops.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"s1","name":"Studio Uno","longitude":-43.2,"latitude":-22.9},
		{"id":"s2","name":"Closed","longitude":1,"latitude":1,"active":false}
	]`), 0o644))

	shops, err := readSeedFile(path)
	require.NoError(t, err)
	require.Len(t, shops, 2)
	assert.True(t, shops[0].Active)
	assert.False(t, shops[1].Active)
	assert.Equal(t, -43.2, shops[0].Longitude)
}

func TestReadSeedFile_Errors(t *testing.T) {
	_, err := readSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = readSeedFile(path)
	assert.Error(t, err)
}

func TestOpenSource_SQLite(t *testing.T) {
	cfg := config.SourceConfig{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "shops.db")}

	st, err := openStore(cfg, discardLogger())
	require.NoError(t, err)
	shops, err := readSeedFileFromString(t, `[{"id":"s1","name":"A","longitude":1,"latitude":2}]`)
	require.NoError(t, err)
	require.NoError(t, st.Upsert(context.Background(), shops...))
	require.NoError(t, st.Close())

	src, release, err := openSource(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer release()

	got, err := src.Descriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestOpenSource_Unknown(t *testing.T) {
	_, _, err := openSource(context.Background(), config.SourceConfig{Type: "csv"}, discardLogger())
	assert.Error(t, err)

	_, err = openStore(config.SourceConfig{Type: "rest"}, discardLogger())
	assert.Error(t, err)
}

func TestCreateSurfaceFactory(t *testing.T) {
	f, err := createSurfaceFactory(config.SurfaceConfig{Type: "memory"}, discardLogger())
	require.NoError(t, err)
	s, err := f(core.ViewOptions{AccessToken: "pk"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Surface{}, s)

	f, err = createSurfaceFactory(config.SurfaceConfig{Type: "websocket", WebsocketURL: "ws://localhost:1/map"}, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, f)

	_, err = createSurfaceFactory(config.SurfaceConfig{Type: "canvas"}, discardLogger())
	assert.Error(t, err)
}

func readSeedFileFromString(t *testing.T, content string) ([]store.Shop, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return readSeedFile(path)
}
