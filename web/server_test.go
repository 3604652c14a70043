package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"blacksky-md/session"
)

type fakeSource struct {
	status session.Status
	code   string
	err    error
	asked  string
}

func (f *fakeSource) Snapshot() session.Status { return f.status }

func (f *fakeSource) RequestPairingCode(ctx context.Context, number string) (string, error) {
	f.asked = number
	return f.code, f.err
}

func newTestServer(src *fakeSource) *httptest.Server {
	s := NewServer(0, src, nil, zerolog.Nop())
	return httptest.NewServer(s.http.Handler)
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeSource{status: session.Status{
		RunID:    "run-1",
		State:    session.StateConnecting,
		Attempts: 3,
	}}
	ts := newTestServer(src)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "connecting" {
		t.Errorf("status field = %v, want connecting", body["status"])
	}
	if body["reconnectAttempts"] != float64(3) {
		t.Errorf("reconnectAttempts = %v, want 3", body["reconnectAttempts"])
	}
}

func TestQRImageWithoutChallenge(t *testing.T) {
	ts := newTestServer(&fakeSource{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/qr.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 while no QR challenge is pending", resp.StatusCode)
	}
}

func TestQRImageWithChallenge(t *testing.T) {
	src := &fakeSource{status: session.Status{
		State:  session.StateQRReady,
		QRCode: "2@some-qr-payload",
	}}
	ts := newTestServer(src)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/qr.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q, want image/png", ct)
	}
}

func TestRequestPairingCode(t *testing.T) {
	src := &fakeSource{code: "ABCD-1234"}
	ts := newTestServer(src)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/request-pairing-code", "application/json",
		strings.NewReader(`{"phoneNumber": "+49 151 12345678"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["pairingCode"] != "ABCD-1234" {
		t.Errorf("pairingCode = %q", body["pairingCode"])
	}
	if body["region"] != "DE" {
		t.Errorf("region = %q, want DE", body["region"])
	}
	if src.asked != "4915112345678" {
		t.Errorf("source asked for %q, want the normalized number", src.asked)
	}
}

func TestRequestPairingCodeRejectsBadInput(t *testing.T) {
	src := &fakeSource{code: "ABCD-1234"}
	ts := newTestServer(src)
	defer ts.Close()

	for _, body := range []string{`{"phoneNumber": "not a number"}`, `{broken`, `{}`} {
		resp, err := http.Post(ts.URL+"/generate-code", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestRequestPairingCodeConflict(t *testing.T) {
	src := &fakeSource{err: errors.New("already paired, wipe credentials first")}
	ts := newTestServer(src)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/request-pairing-code", "application/json",
		strings.NewReader(`{"phoneNumber": "+4915112345678"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestStartReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := NewServer(port, &fakeSource{}, nil, zerolog.Nop())
	if err := s.Start(); err == nil {
		s.Shutdown(context.Background())
		t.Fatal("Start should fail when the port is already in use")
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := NewServer(0, &fakeSource{}, nil, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestIndexPage(t *testing.T) {
	src := &fakeSource{status: session.Status{
		RunID:       "run-1",
		State:       session.StatePairingCodeReady,
		PairingCode: "ABCD-1234",
	}}
	ts := newTestServer(src)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "ABCD-1234") {
		t.Error("page should show the pairing code")
	}
}
