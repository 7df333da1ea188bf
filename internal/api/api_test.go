// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/camsync/internal/sync"
)

type fakeStatus struct{ st sync.Status }

func (f fakeStatus) Status() sync.Status { return f.st }

type fakeTrigger struct {
	calls  int
	accept bool
}

func (f *fakeTrigger) Trigger() bool {
	f.calls++
	return f.accept
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func serve(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, env
}

func TestRoutes(t *testing.T) {
	trigger := &fakeTrigger{accept: true}
	report := &sync.Report{RunID: "r1", Processed: 4}
	h := NewRouter(NewHandler(Options{
		Status:  fakeStatus{st: sync.Status{LastRun: report}},
		Trigger: trigger,
		Breaker: func() string { return "closed" },
		Version: "test",
	}))

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		contains string
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK, contains: `"alive":true`},
		{name: "status", method: http.MethodGet, path: "/status", wantCode: http.StatusOK, contains: `"processed":4`},
		{name: "run", method: http.MethodPost, path: "/run", wantCode: http.StatusAccepted, contains: `"queued":true`},
		{name: "run via GET", method: http.MethodGet, path: "/run", wantCode: http.StatusMethodNotAllowed},
		{name: "unknown", method: http.MethodGet, path: "/nope", wantCode: http.StatusNotFound},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantCode: http.StatusOK, contains: "camsync_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(t, h, tt.method, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.contains)
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers missing")
			}
		})
	}

	if trigger.calls != 1 {
		t.Errorf("trigger calls = %d, want 1", trigger.calls)
	}
}

func TestStatusIncludesLockOwner(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "camsync.lock")
	acquired := time.Now().Add(-time.Minute).UTC()
	data, _ := json.Marshal(map[string]interface{}{"pid": 4242, "acquired_at": acquired, "hostname": "nas"})
	if err := os.WriteFile(lock, data, 0o600); err != nil {
		t.Fatal(err)
	}

	h := NewRouter(NewHandler(Options{Status: fakeStatus{st: sync.Status{Running: true}}, LockPath: lock}))
	rec, env := serve(t, h, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got statusResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !got.Running || got.Lock == nil || got.Lock.PID != 4242 || got.Lock.Hostname != "nas" {
		t.Errorf("status = %+v lock = %+v", got, got.Lock)
	}
	if got.Lock.AgeSeconds < 59 {
		t.Errorf("lock age = %v", got.Lock.AgeSeconds)
	}
}

func TestTriggerWithoutScheduler(t *testing.T) {
	h := NewRouter(NewHandler(Options{Status: fakeStatus{}}))
	rec, env := serve(t, h, http.MethodPost, "/run")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "NO_SCHEDULER" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}
