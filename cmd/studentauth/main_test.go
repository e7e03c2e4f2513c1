package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/studentauth/internal/testutil"
)

func emptyEnv(string) string { return "" }

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	getwd := func() (string, error) { return t.TempDir(), nil }

	t.Run("serve and stop with context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		t.Cleanup(cancel)

		done := make(chan error, 1)
		go func() {
			done <- run(ctx, emptyEnv, getwd, []string{
				"--address", listenAddr,
				"--log-level", "debug",
				"--database", pg.DSN,
				"--access-secret", "access-secret",
				"--refresh-secret", "refresh-secret",
			})
		}()

		// Wait until server accepts requests
		body := `{"name": "A", "username": "a1", "email": "a@x.com", "password": "Secret1"}`
		var resp *http.Response
		require.Eventually(t, func() bool {
			r, err := http.Post("http://"+listenAddr+"/api/users/auth/register", "application/json", strings.NewReader(body))
			if err != nil {
				return false
			}
			resp = r
			return true
		}, 5*time.Second, 50*time.Millisecond, "server not started")
		defer resp.Body.Close() //nolint:errcheck
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err, "on correct stop should not return error")
		case <-time.After(10 * time.Second):
			t.Fatal("server not stopped after context cancelled")
		}
	})

	t.Run("fail without secrets", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, emptyEnv, getwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
		})

		require.Error(t, err, "secrets are required to start")
	})

	t.Run("fail with same secrets", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, emptyEnv, getwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
			"--access-secret", "secret",
			"--refresh-secret", "secret",
		})

		require.ErrorContains(t, err, "secrets must differ")
	})
}
