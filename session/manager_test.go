package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types/events"

	"blacksky-md/core"
)

// fakeManager wires the test seams so the state machine runs without a
// socket or a database.
type fakeManager struct {
	*Manager
	mu        sync.Mutex
	dials     int
	wipes     int
	scheduled []time.Duration
}

func newFakeManager(t *testing.T, cfg *core.Config) *fakeManager {
	t.Helper()
	if cfg == nil {
		cfg = &core.Config{
			AuthDir:          t.TempDir(),
			ReconnectBase:    time.Second,
			ReconnectCeiling: 30 * time.Second,
			WipeRetryDelay:   5 * time.Second,
		}
	}

	f := &fakeManager{Manager: New(cfg, zerolog.Nop())}
	f.Manager.dial = func(ctx context.Context) error {
		f.mu.Lock()
		f.dials++
		f.mu.Unlock()
		return nil
	}
	f.Manager.wipeCreds = func() error {
		f.mu.Lock()
		f.wipes++
		f.mu.Unlock()
		return nil
	}
	f.Manager.schedule = func(d time.Duration, fn func()) {
		f.mu.Lock()
		f.scheduled = append(f.scheduled, d)
		f.mu.Unlock()
	}
	return f
}

func TestTransientCloseSchedulesOneBackoffRetry(t *testing.T) {
	f := newFakeManager(t, nil)

	f.handleEvent(Event{Kind: EventClosed})
	f.handleEvent(Event{Kind: EventClosed}) // second close while a timer is pending

	st := f.Snapshot()
	if st.State != StateDisconnected {
		t.Errorf("state = %s, want disconnected", st.State)
	}
	if st.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", st.Attempts)
	}
	if len(f.scheduled) != 1 {
		t.Fatalf("scheduled %d retries, want exactly 1", len(f.scheduled))
	}
	if f.wipes != 0 {
		t.Errorf("transient close wiped credentials %d times", f.wipes)
	}
}

func TestPermanentCloseWipesThenRetriesAfterFixedDelay(t *testing.T) {
	f := newFakeManager(t, nil)

	f.handleEvent(Event{Kind: EventClosed, Permanent: true, Err: errors.New("logged out")})

	if f.wipes != 1 {
		t.Fatalf("wipes = %d, want 1", f.wipes)
	}
	if len(f.scheduled) != 1 {
		t.Fatalf("scheduled %d retries, want 1", len(f.scheduled))
	}
	if f.scheduled[0] != 5*time.Second {
		t.Errorf("retry delay = %v, want the fixed wipe delay 5s", f.scheduled[0])
	}

	st := f.Snapshot()
	if st.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 after wipe", st.Attempts)
	}
	if st.LastError == "" {
		t.Error("lastError should record the logout reason")
	}
}

func TestOpenedResetsBackoff(t *testing.T) {
	f := newFakeManager(t, nil)

	f.handleEvent(Event{Kind: EventClosed})
	f.handleEvent(Event{Kind: EventFailure, Err: errors.New("boom")})
	f.handleEvent(Event{Kind: EventOpened})

	st := f.Snapshot()
	if st.State != StateConnected {
		t.Errorf("state = %s, want connected", st.State)
	}
	if st.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 after successful open", st.Attempts)
	}
	if st.LastError != "" {
		t.Errorf("lastError = %q, want cleared", st.LastError)
	}
	if st.ConnectedAt.IsZero() {
		t.Error("connectedAt should be set")
	}
}

func TestConnectIsIdempotentWhileDialing(t *testing.T) {
	f := newFakeManager(t, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	f.Manager.dial = func(ctx context.Context) error {
		f.mu.Lock()
		f.dials++
		f.mu.Unlock()
		close(started)
		<-release
		return nil
	}

	done := make(chan struct{})
	go func() {
		f.Connect(context.Background())
		close(done)
	}()

	<-started
	f.Connect(context.Background()) // overlapping call must not dial again
	close(release)
	<-done

	f.mu.Lock()
	dials := f.dials
	f.mu.Unlock()
	if dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}
}

func TestDialFailureSchedulesRetry(t *testing.T) {
	f := newFakeManager(t, nil)
	f.Manager.dial = func(ctx context.Context) error {
		return errors.New("dial tcp: connection refused")
	}

	f.Connect(context.Background())

	st := f.Snapshot()
	if st.State != StateError {
		t.Errorf("state = %s, want error", st.State)
	}
	if st.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", st.Attempts)
	}
	if len(f.scheduled) != 1 {
		t.Errorf("scheduled %d retries, want 1", len(f.scheduled))
	}
}

func TestShutdownStopsRetries(t *testing.T) {
	f := newFakeManager(t, nil)
	f.Shutdown()

	f.handleEvent(Event{Kind: EventClosed})
	f.Connect(context.Background())

	if len(f.scheduled) != 0 {
		t.Errorf("scheduled %d retries after shutdown, want 0", len(f.scheduled))
	}
	if f.dials != 0 {
		t.Errorf("dials = %d after shutdown, want 0", f.dials)
	}
}

func TestSocketFailureEventsScheduleRetry(t *testing.T) {
	// these disconnects are marked expected inside whatsmeow, so no
	// events.Disconnected follows; each must arm a retry on its own
	cases := []struct {
		name string
		evt  interface{}
	}{
		{"connect failure", &events.ConnectFailure{}},
		{"temporary ban", &events.TemporaryBan{Expire: time.Hour}},
		{"client outdated", &events.ClientOutdated{}},
		{"stream error", &events.StreamError{Code: "515"}},
		{"cat refresh error", &events.CATRefreshError{Error: errors.New("token expired")}},
		{"disconnected", &events.Disconnected{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeManager(t, nil)

			f.handleSocketEvent(tc.evt)

			if len(f.scheduled) != 1 {
				t.Fatalf("scheduled %d retries, want 1", len(f.scheduled))
			}
			if st := f.Snapshot(); st.State != StateDisconnected && st.State != StateError {
				t.Errorf("state = %s, want disconnected or error", st.State)
			}
			if f.wipes != 0 {
				t.Errorf("wiped credentials %d times, want 0", f.wipes)
			}
		})
	}
}

func TestHealthCheckRecoversDeadSocket(t *testing.T) {
	f := newFakeManager(t, nil)
	f.Manager.alive = func() bool { return false }

	f.handleEvent(Event{Kind: EventOpened})
	f.healthCheck()

	st := f.Snapshot()
	if st.State != StateDisconnected {
		t.Errorf("state = %s, want disconnected after failed health check", st.State)
	}
	if len(f.scheduled) != 1 {
		t.Errorf("scheduled %d retries, want 1", len(f.scheduled))
	}
}

func TestHealthCheckLeavesLiveSocketAlone(t *testing.T) {
	f := newFakeManager(t, nil)
	f.Manager.alive = func() bool { return true }

	f.handleEvent(Event{Kind: EventOpened})
	f.healthCheck()

	if st := f.Snapshot(); st.State != StateConnected {
		t.Errorf("state = %s, want connected", st.State)
	}
	if len(f.scheduled) != 0 {
		t.Errorf("scheduled %d retries, want 0", len(f.scheduled))
	}
}

func TestQRChallengeVisibleInSnapshot(t *testing.T) {
	f := newFakeManager(t, nil)

	var notified []Status
	f.SetOnChange(func(st Status) { notified = append(notified, st) })

	f.handleEvent(Event{Kind: EventQRCode, Code: "2@qr-payload"})

	st := f.Snapshot()
	if st.State != StateQRReady {
		t.Errorf("state = %s, want qr_ready", st.State)
	}
	if st.QRCode != "2@qr-payload" {
		t.Errorf("qrCode = %q, want the challenge payload", st.QRCode)
	}
	if len(notified) == 0 || notified[len(notified)-1].QRCode != "2@qr-payload" {
		t.Error("onChange hook should see the QR challenge")
	}

	// the pairing code replaces the QR challenge, never coexists with it
	f.handleEvent(Event{Kind: EventPairingCode, Code: "ABCD-1234"})
	st = f.Snapshot()
	if st.QRCode != "" || st.PairingCode != "ABCD-1234" {
		t.Errorf("after pairing code: qr=%q pairing=%q", st.QRCode, st.PairingCode)
	}
}

func TestWipeOnMaxFail(t *testing.T) {
	cfg := &core.Config{
		AuthDir:              t.TempDir(),
		ReconnectBase:        time.Second,
		ReconnectCeiling:     30 * time.Second,
		WipeRetryDelay:       5 * time.Second,
		MaxReconnectAttempts: 2,
		WipeOnMaxFail:        true,
	}
	f := newFakeManager(t, cfg)

	f.handleEvent(Event{Kind: EventClosed})
	if f.wipes != 0 {
		t.Fatalf("wiped after first failure")
	}

	// drain the pending timer so the second close can schedule
	f.Manager.mu.Lock()
	f.Manager.retryPending = false
	f.Manager.mu.Unlock()

	f.handleEvent(Event{Kind: EventClosed})
	if f.wipes != 1 {
		t.Errorf("wipes = %d, want 1 after hitting the attempt limit", f.wipes)
	}
	if f.Snapshot().Attempts != 0 {
		t.Errorf("attempts should reset after the limit wipe")
	}
}
