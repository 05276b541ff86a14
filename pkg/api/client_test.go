package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatar-cropper/pkg/types"
)

const sessionCookie = "token"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newBackend fakes the account backend: register sets a session cookie that
// /auth/me and /users/me require.
func newBackend(t *testing.T) (*httptest.Server, *[]types.RegisterRequest, *[]types.ProfileUpdate) {
	t.Helper()
	var registered []types.RegisterRequest
	var updates []types.ProfileUpdate

	authed := func(r *http.Request) bool {
		c, err := r.Cookie(sessionCookie)
		return err == nil && c.Value == "s3cret"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req types.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
			return
		}
		registered = append(registered, req)
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "s3cret", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusCreated, types.AuthResponse{User: types.User{ID: "u1", Name: req.Name, Email: req.Email, ProfilePhotoURL: req.ProfilePic}})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not signed in"})
			return
		}
		writeJSON(w, http.StatusOK, types.AuthResponse{User: types.User{ID: "u1", Name: "Jane Doe"}})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not signed in"})
			return
		}
		var u types.ProfileUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
			return
		}
		updates = append(updates, u)
		user := types.User{ID: "u1", Phone: u.Phone, Hostel: u.Hostel}
		if u.ProfilePic != nil {
			user.ProfilePhotoURL = *u.ProfilePic
		}
		writeJSON(w, http.StatusOK, types.AuthResponse{User: user})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "account locked"})
	})
	mux.HandleFunc("/api/boom", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &registered, &updates
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL + "/api/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestRegisterKeepsSessionCookie(t *testing.T) {
	srv, registered, _ := newBackend(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Me(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	user, err := c.Register(ctx, types.RegisterRequest{
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Password:   "Passw0rd!",
		ProfilePic: "data:image/jpeg;base64,AAAA",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", user.ProfilePhotoURL)
	require.Len(t, *registered, 1)
	assert.Equal(t, "jane@example.com", (*registered)[0].Email)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", me.Name)

	require.NoError(t, c.Logout(ctx))
	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	srv, _, updates := newBackend(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	pic := "data:image/jpeg;base64,BBBB"
	_, err := c.UpdateProfile(ctx, types.ProfileUpdate{Phone: "1234567890", ProfilePic: &pic})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Register(ctx, types.RegisterRequest{Name: "Jane Doe"})
	require.NoError(t, err)

	user, err := c.UpdateProfile(ctx, types.ProfileUpdate{Phone: "1234567890", Hostel: "H1", ProfilePic: &pic})
	require.NoError(t, err)
	assert.Equal(t, pic, user.ProfilePhotoURL)
	assert.Equal(t, "H1", user.Hostel)
	require.Len(t, *updates, 1)
	require.NotNil(t, (*updates)[0].ProfilePic)
	assert.Equal(t, pic, *(*updates)[0].ProfilePic)
}

func TestErrorClassification(t *testing.T) {
	srv, _, _ := newBackend(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Login(ctx, types.LoginRequest{Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "account locked", apiErr.Message)
	assert.Equal(t, "/auth/login", apiErr.Path)

	err = c.do(ctx, http.MethodGet, "/boom", nil, nil)
	assert.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "upstream down")

	err = c.do(ctx, http.MethodGet, "/missing", nil, nil)
	assert.ErrorIs(t, err, ErrRequest)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrUnauthorized, classify(401))
	assert.Equal(t, ErrForbidden, classify(403))
	assert.Equal(t, ErrServer, classify(500))
	assert.Equal(t, ErrServer, classify(503))
	assert.Equal(t, ErrRequest, classify(404))
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.rest.BaseURL)
	assert.Equal(t, DefaultTimeout, c.rest.GetClient().Timeout)
}
