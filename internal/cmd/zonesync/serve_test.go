package zonesync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bunny-dns-sync/internal/fingerprint"
)

func doRequest(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, body
}

func TestStatusServerHealth(t *testing.T) {
	s := newStatusServer(context.Background(), nil, 0, nil)
	rec, body := doRequest(t, s.router(), http.MethodGet, "/health")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("unexpected health response %d %v", rec.Code, body)
	}
	if rec, _ := doRequest(t, s.router(), http.MethodPost, "/health"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStatusServerRun(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{}, 1)
	run := func(ctx context.Context) (*fingerprint.RunReport, error) {
		<-release
		done <- struct{}{}
		return &fingerprint.RunReport{RunID: "run-1"}, nil
	}
	s := newStatusServer(context.Background(), run, time.Minute, nil)
	h := s.router()

	rec, _ := doRequest(t, h, http.MethodPost, "/api/run")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	rec, body := doRequest(t, h, http.MethodPost, "/api/run")
	if rec.Code != http.StatusConflict || body["status"] != "running" {
		t.Fatalf("second trigger must be refused while running: %d %v", rec.Code, body)
	}
	if _, body := doRequest(t, h, http.MethodGet, "/api/status"); body["running"] != true {
		t.Fatalf("status must show the running pass: %v", body)
	}

	close(release)
	<-done
	s.wg.Wait()

	_, body = doRequest(t, h, http.MethodGet, "/api/status")
	if body["running"] != false || body["runs"] != float64(1) {
		t.Fatalf("unexpected status after pass: %v", body)
	}
	report, ok := body["last_report"].(map[string]any)
	if !ok || report["run_id"] != "run-1" {
		t.Fatalf("last report missing: %v", body)
	}
	if _, ok := body["last_error"]; ok {
		t.Fatalf("unexpected error in status: %v", body)
	}
}

func TestStatusServerRecordsFailures(t *testing.T) {
	calls := 0
	run := func(ctx context.Context) (*fingerprint.RunReport, error) {
		calls++
		if calls == 1 {
			return nil, errSkipped
		}
		return nil, errors.New("zone dir unreadable")
	}
	s := newStatusServer(context.Background(), run, 0, nil)

	s.begin()
	s.pass(context.Background())
	if s.runs != 0 || s.running {
		t.Fatalf("skipped pass must not count: runs=%d running=%v", s.runs, s.running)
	}

	s.begin()
	s.pass(context.Background())
	_, body := doRequest(t, s.router(), http.MethodGet, "/api/status")
	if body["last_error"] != "zone dir unreadable" || body["runs"] != float64(1) {
		t.Fatalf("unexpected status: %v", body)
	}
}

func TestStatusServerLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	passes := make(chan struct{}, 10)
	s := newStatusServer(ctx, func(context.Context) (*fingerprint.RunReport, error) {
		passes <- struct{}{}
		return &fingerprint.RunReport{}, nil
	}, time.Hour, nil)

	errc := make(chan error, 1)
	go func() { errc <- s.loop(ctx) }()
	<-passes
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("loop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop after cancel")
	}
}
