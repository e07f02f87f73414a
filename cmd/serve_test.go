package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"mpgserve/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func getJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestRunServerStaysUpWithoutModel(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"missing artifact", filepath.Join(dir, "missing.json")},
		{"corrupt artifact", corrupt},
		{"missing registry", filepath.Join(dir, "missing.db")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.HTTP.Port = freePort(t)
			cfg.Model.Path = tt.path

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- runServer(ctx, cfg, zap.NewNop()) }()

			base := fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTP.Port)
			require.Eventually(t, func() bool {
				resp, err := http.Get(base + "/health")
				if err != nil {
					return false
				}
				resp.Body.Close()
				return resp.StatusCode == http.StatusOK
			}, 5*time.Second, 20*time.Millisecond, "server did not come up")

			resp, err := http.Get(base + "/health")
			require.NoError(t, err)
			health := getJSON(t, resp)
			assert.Equal(t, "unhealthy", health["status"])
			assert.Equal(t, false, health["model_loaded"])

			resp, err = http.PostForm(base+"/predict", url.Values{"weight": {"3000"}})
			require.NoError(t, err)
			payload := getJSON(t, resp)
			assert.Equal(t, false, payload["success"])
			assert.Equal(t, "model_unavailable", payload["kind"])

			resp, err = http.Get(base + "/api/metrics?format=prometheus")
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, err)
			assert.Contains(t, string(body), `mpg_model_loaded{result="failed"} 1`)

			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(15 * time.Second):
				t.Fatal("server did not shut down")
			}
			assert.NoFileExists(t, filepath.Join(dir, "missing.db"))
		})
	}
}
