// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package arlo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/camsync/internal/config"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/metrics"
	"github.com/tomtom215/camsync/internal/models"
)

var (
	// ErrAPI reports a non-2xx response or an envelope with success:false.
	ErrAPI = errors.New("arlo api error")

	// ErrLoginFailed reports rejected credentials.
	ErrLoginFailed = errors.New("arlo login failed")

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("arlo api unavailable")

	errUnauthorized = errors.New("unauthorized")
)

const (
	dateLayout       = "20060102"
	maxErrorBodySize = 64 * 1024
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	Email           string
	Password        string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	RateLimit       float64 // Requests per second, 0 = unlimited
	RateBurst       int

	// HTTPClient overrides the API client. Tests point it at httptest.
	HTTPClient *http.Client
}

// OptionsFromConfig maps the arlo config section onto Options.
func OptionsFromConfig(cfg config.ArloConfig) Options {
	return Options{
		BaseURL:         cfg.BaseURL,
		Email:           cfg.Email,
		Password:        cfg.Password,
		RequestTimeout:  cfg.RequestTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
	}
}

// Client talks to the Arlo cloud library. It is safe for concurrent use.
type Client struct {
	baseURL  string
	email    string
	password string

	api      *http.Client
	download *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[interface{}]

	authMu sync.Mutex
	token  string
	userID string

	libMu   sync.Mutex
	library map[string][]models.RemoteItem // keyed by "from-to"
}

// New creates a Client. No request is made until the first call.
func New(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 10 * time.Minute
	}

	api := opts.HTTPClient
	if api == nil {
		api = &http.Client{Timeout: opts.RequestTimeout}
	}
	// Downloads share the transport but get their own, longer deadline.
	download := &http.Client{Transport: api.Transport, Timeout: opts.DownloadTimeout}

	limit := rate.Inf
	burst := opts.RateBurst
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		email:    opts.Email,
		password: opts.Password,
		api:      api,
		download: download,
		limiter:  rate.NewLimiter(limit, burst),
		cb:       newBreaker(breakerName),
		library:  make(map[string][]models.RemoteItem),
	}
}

// envelope is the wrapper around every API response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type apiFailure struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Error   string `json:"error"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string `json:"token"`
	UserID       string `json:"userId"`
	SerialNumber string `json:"serialNumber"`
}

type device struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

type libraryRequest struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
}

type libraryRecord struct {
	DeviceID            string `json:"deviceId"`
	Name                string `json:"name"`
	UTCCreatedDate      int64  `json:"utcCreatedDate"`
	MediaDurationSecond int    `json:"mediaDurationSecond"`
	PresignedContentURL string `json:"presignedContentUrl"`
	ContentType         string `json:"contentType"`
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	var resp loginResponse
	err := c.call(ctx, "login", http.MethodPost, "/login", "", loginRequest{Email: c.email, Password: c.password}, &resp)
	if err != nil {
		if errors.Is(err, errUnauthorized) || errors.Is(err, ErrAPI) {
			return fmt.Errorf("%w: %w", ErrLoginFailed, err)
		}
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("%w: response carried no token", ErrLoginFailed)
	}

	c.token = resp.Token
	c.userID = resp.UserID
	logging.Info().
		Str("account", logging.SanitizeEmail(c.email)).
		Str("token", logging.SanitizeToken(resp.Token)).
		Msg("Logged in to Arlo")
	return nil
}

// ensureToken logs in when no session exists and returns the current token.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.token == "" {
		if err := c.loginLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

// invalidate forgets stale unless another caller already replaced it.
func (c *Client) invalidate(stale string) {
	c.authMu.Lock()
	if c.token == stale {
		c.token = ""
	}
	c.authMu.Unlock()
}

// authorized performs an authenticated call, logging in again once on 401.
func (c *Client) authorized(ctx context.Context, endpoint, method, path string, body, out interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}
		err = c.call(ctx, endpoint, method, path, token, body, out)
		if errors.Is(err, errUnauthorized) && attempt == 0 {
			logging.Info().Str("endpoint", endpoint).Msg("Arlo session expired, logging in again")
			c.invalidate(token)
			continue
		}
		return err
	}
}

// call sends one JSON request through the limiter and breaker and decodes the
// envelope's data into out.
func (c *Client) call(ctx context.Context, endpoint, method, path, token string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, endpoint, method, path, token, body, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path, token string, body, out interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	start := time.Now()
	resp, err := c.api.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordRemoteRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", endpoint, errUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned HTTP %d: %s", ErrAPI, endpoint, resp.StatusCode, readBodyForError(resp.Body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s: %s", ErrAPI, endpoint, failureMessage(env.Data))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}

// Cameras lists the account's cameras. Base stations and other device types
// are left out.
func (c *Client) Cameras(ctx context.Context) ([]models.Camera, error) {
	var devices []device
	if err := c.authorized(ctx, "devices", http.MethodGet, "/users/devices", nil, &devices); err != nil {
		return nil, err
	}

	cams := make([]models.Camera, 0, len(devices))
	for _, d := range devices {
		if d.DeviceType != "camera" || d.DeviceID == "" {
			continue
		}
		cams = append(cams, models.Camera{SerialID: d.DeviceID, DisplayName: d.DeviceName})
	}
	return cams, nil
}

// Library lists every recording between from and to, inclusive by date.
// Results are memoized per range until ResetCache.
func (c *Client) Library(ctx context.Context, from, to time.Time) ([]models.RemoteItem, error) {
	req := libraryRequest{
		DateFrom: from.UTC().Format(dateLayout),
		DateTo:   to.UTC().Format(dateLayout),
	}
	key := req.DateFrom + "-" + req.DateTo

	c.libMu.Lock()
	defer c.libMu.Unlock()
	if items, ok := c.library[key]; ok {
		return items, nil
	}

	var records []libraryRecord
	if err := c.authorized(ctx, "library", http.MethodPost, "/users/library", req, &records); err != nil {
		return nil, err
	}

	items := make([]models.RemoteItem, 0, len(records))
	for _, r := range records {
		if r.DeviceID == "" || r.Name == "" {
			logging.Debug().Str("device", r.DeviceID).Msg("Skipping library record without identity")
			continue
		}
		items = append(items, models.RemoteItem{
			CameraID:        r.DeviceID,
			ItemID:          r.Name,
			CaptureStart:    r.UTCCreatedDate,
			DurationSeconds: r.MediaDurationSecond,
			FetchURL:        r.PresignedContentURL,
			Name:            r.Name,
			ContentType:     r.ContentType,
		})
	}
	c.library[key] = items

	logging.Debug().Str("from", req.DateFrom).Str("to", req.DateTo).Int("items", len(items)).Msg("Listed Arlo library")
	return items, nil
}

// Items returns the library items recorded by one camera.
func (c *Client) Items(ctx context.Context, cameraID string, from, to time.Time) ([]models.RemoteItem, error) {
	all, err := c.Library(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var items []models.RemoteItem
	for _, item := range all {
		if item.CameraID == cameraID {
			items = append(items, item)
		}
	}
	return items, nil
}

// ResetCache forgets memoized library listings. Presigned URLs expire, so a
// new run must list again.
func (c *Client) ResetCache() {
	c.libMu.Lock()
	c.library = make(map[string][]models.RemoteItem)
	c.libMu.Unlock()
}

// Open downloads an item through its presigned URL. The caller closes the
// returned body.
func (c *Client) Open(ctx context.Context, item models.RemoteItem) (io.ReadCloser, error) {
	if item.FetchURL == "" {
		return nil, fmt.Errorf("item %s has no download URL", item.Tag())
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return castResult[io.ReadCloser](c.execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.FetchURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create download request: %w", err)
		}

		start := time.Now()
		resp, err := c.download.Do(req)
		if err != nil {
			metrics.RecordRemoteRequest("download", 0, time.Since(start))
			return nil, fmt.Errorf("download %s: %w", logging.SanitizeURL(item.FetchURL), err)
		}
		metrics.RecordRemoteRequest("download", resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, fmt.Errorf("%w: download %s returned HTTP %d: %s",
				ErrAPI, logging.SanitizeURL(item.FetchURL), resp.StatusCode, readBodyForError(resp.Body))
		}
		return resp.Body, nil
	}))
}

// readBodyForError reads up to 64KB of a response body for error messages.
func readBodyForError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil {
		return fmt.Sprintf("(failed to read body: %v)", err)
	}
	return strings.TrimSpace(string(data))
}

func failureMessage(data json.RawMessage) string {
	var f apiFailure
	if len(data) == 0 || json.Unmarshal(data, &f) != nil {
		return "request unsuccessful"
	}
	for _, msg := range []string{f.Message, f.Reason, f.Error} {
		if msg != "" {
			return msg
		}
	}
	return "request unsuccessful"
}
