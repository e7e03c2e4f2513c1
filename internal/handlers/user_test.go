package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_UserHandler(t *testing.T) {
	t.Parallel()

	t.Run("me ok", func(t *testing.T) {
		srv := startServer(t, Options{})
		registered := srv.post(t, "/api/users/auth/register", registerBody).json(t)

		resp := srv.do(t, http.MethodGet, "/api/users/me", "", registered["accessToken"].(string))

		require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
		me := resp.json(t)
		assert.Equal(t, registered["id"], me["id"])
		assert.Equal(t, "a1", me["username"])
		assert.Equal(t, "a@x.com", me["email"])
		assert.Equal(t, "A", me["name"])
		assert.NotEmpty(t, me["createdAt"])
		assert.NotContains(t, me, "refreshToken")
	})

	t.Run("me requires token", func(t *testing.T) {
		srv := startServer(t, Options{})

		resp := srv.do(t, http.MethodGet, "/api/users/me", "", "")

		require.Equal(t, http.StatusUnauthorized, resp.status)
	})

	t.Run("delete account", func(t *testing.T) {
		srv := startServer(t, Options{})
		registered := srv.post(t, "/api/users/auth/register", registerBody).json(t)
		access := registered["accessToken"].(string)

		resp := srv.do(t, http.MethodDelete, "/api/users/me", "", access)
		require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
		require.JSONEq(t, `{"message": "Account deleted successfully"}`, resp.body)

		resp = srv.do(t, http.MethodGet, "/api/users/me", "", access)
		require.Equal(t, http.StatusNotFound, resp.status, "deleted user is not visible")

		resp = srv.post(t, "/api/users/auth/login", `{"identifier": "a1", "password": "Secret1"}`)
		require.Equal(t, http.StatusUnauthorized, resp.status, "deleted user can't log in")

		resp = srv.post(t, "/api/users/auth/refresh", `{"refreshToken": "`+registered["refreshToken"].(string)+`"}`)
		require.Equal(t, http.StatusForbidden, resp.status, "refresh token of deleted user is revoked")

		resp = srv.post(t, "/api/users/auth/register", registerBody)
		require.Equal(t, http.StatusCreated, resp.status, "username and email are free again")
	})
}
