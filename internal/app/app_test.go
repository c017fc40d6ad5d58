package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Host:                "0.0.0.0",
		Port:                8080,
		LogLevel:            "info",
		SnapshotExp:         time.Hour,
		SeekStep:            5,
		TimeRefreshInterval: 250 * time.Millisecond,
		TickInterval:        50 * time.Millisecond,
		ProbeTimeout:        time.Second,
		MSE:                 true,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"port", func(c *AppConfig) { c.Port = 0 }},
		{"snapshot exp", func(c *AppConfig) { c.SnapshotExp = 0 }},
		{"seek step", func(c *AppConfig) { c.SeekStep = 0 }},
		{"time refresh", func(c *AppConfig) { c.TimeRefreshInterval = -time.Second }},
		{"tick", func(c *AppConfig) { c.TickInterval = 0 }},
		{"probe timeout", func(c *AppConfig) { c.ProbeTimeout = 0 }},
		{"default duration", func(c *AppConfig) { c.DefaultDuration = -1 }},
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPlayerSession(t *testing.T) {
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rc.Close()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Duration", "42")
		w.Header().Set("Content-Type", "video/mp4")
	}))
	defer media.Close()

	handler, svc := newHandler(validConfig(), rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(handler)
	defer server.Close()
	defer svc.Shutdown(context.Background())

	body := `{"container_id":"main","src":[{"src":"` + media.URL + `/movie.mp4"}],"options":{"autoplay":true}}`
	resp, err := http.Post(server.URL+"/api/v1/players", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(server.URL + "/api/v1/players/main/snapshot")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var out struct {
			Data struct {
				State    string  `json:"state"`
				Duration float64 `json:"duration"`
			} `json:"data"`
		}
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&out) != nil {
			return false
		}
		return out.Data.State == "playing" && out.Data.Duration == 42
	}, 3*time.Second, 10*time.Millisecond)

	assert.True(t, s.Exists("player:main:snapshot"))
}
