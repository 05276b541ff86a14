// Package api is the HTTP client for the account backend that receives the
// registration and profile forms, cropped avatar included.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/menta2k/avatar-cropper/pkg/client"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// Defaults of the web client
const (
	DefaultBaseURL = "http://localhost:5001/api"
	DefaultTimeout = 10 * time.Second
)

var (
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: access forbidden")
	ErrServer       = errors.New("api: server error occurred")
	ErrRequest      = errors.New("api: request failed")
)

// Error is returned for every non-2xx response
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	kind       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap exposes the status class so callers can use errors.Is
func (e *Error) Unwrap() error {
	return e.kind
}

// Config holds client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// DefaultConfig returns the settings of the web client
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client talks to the account backend. Credentials travel as HTTP-only
// cookies kept in the client's cookie jar.
type Client struct {
	rest   *resty.Client
	logger *zap.Logger
}

var _ client.AccountClient = (*Client)(nil)

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewClient creates a client for the backend at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rest := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())

	c := &Client{rest: rest, logger: logger}

	rest.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		c.logger.Debug("api request", zap.String("method", r.Method), zap.String("url", r.URL))
		return nil
	})
	rest.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		fields := []zap.Field{
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", resp.Time()),
		}
		switch status := resp.StatusCode(); {
		case status == http.StatusUnauthorized:
			c.logger.Warn("unauthorized, sign in again", fields...)
		case status == http.StatusForbidden:
			c.logger.Warn("access forbidden", fields...)
		case status >= http.StatusInternalServerError:
			c.logger.Error("server error occurred", fields...)
		default:
			c.logger.Debug("api response", fields...)
		}
		return nil
	})

	return c, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req types.RegisterRequest) (*types.User, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login signs in and stores the session cookie
func (c *Client) Login(ctx context.Context, req types.LoginRequest) (*types.User, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout ends the session
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// UpdateProfile saves the editable profile fields
func (c *Client) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodPut, "/users/me", update, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	req := c.rest.R().
		SetContext(ctx).
		SetError(&errorBody{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &Error{
		StatusCode: resp.StatusCode(),
		Method:     method,
		Path:       path,
		kind:       classify(resp.StatusCode()),
	}
	if eb, ok := resp.Error().(*errorBody); ok && eb != nil {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
	}
	return apiErr
}

func classify(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrRequest
	}
}
