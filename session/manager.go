package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"blacksky-md/core"
)

// Status is a read-only snapshot of the session for presenters and
// reporters.
type Status struct {
	RunID       string    `json:"runId"`
	State       State     `json:"status"`
	QRCode      string    `json:"qrCode,omitempty"`
	PairingCode string    `json:"pairingCode,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Attempts    int       `json:"reconnectAttempts"`
	Number      string    `json:"number,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Manager owns the single whatsmeow client of this process. It persists
// credentials through the sqlstore, maps socket events onto the state
// machine in state.go and schedules reconnects per the RetryPolicy.
type Manager struct {
	cfg    *core.Config
	policy RetryPolicy
	log    zerolog.Logger
	waLog  waLog.Logger

	mu           sync.Mutex
	state        State
	qrCode       string
	pairingCode  string
	lastError    string
	attempts     int
	retryPending bool
	dialing      bool
	closed       bool

	client    *whatsmeow.Client
	container *sqlstore.Container
	store     credStore

	runID       string
	startedAt   time.Time
	connectedAt time.Time

	onChange  func(Status)
	onMessage func(client *whatsmeow.Client, msg *events.Message)

	// replaced in tests to run the state machine without a socket
	dial      func(ctx context.Context) error
	wipeCreds func() error
	schedule  func(d time.Duration, f func())
	alive     func() bool
}

func New(cfg *core.Config, logger zerolog.Logger) *Manager {
	number := cfg.Number
	if number == "" {
		number = "session"
	}

	m := &Manager{
		cfg: cfg,
		policy: RetryPolicy{
			Base:        cfg.ReconnectBase,
			Ceiling:     cfg.ReconnectCeiling,
			Jitter:      cfg.ReconnectJitter,
			WipeDelay:   cfg.WipeRetryDelay,
			MaxAttempts: cfg.MaxReconnectAttempts,
			WipeOnLimit: cfg.WipeOnMaxFail,
		},
		log:       logger,
		waLog:     waLog.Zerolog(logger.With().Str("component", "whatsmeow").Logger()),
		state:     StateDisconnected,
		store:     credStore{dir: cfg.AuthDir, number: number},
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}
	m.dial = m.dialWhatsmeow
	m.wipeCreds = m.store.wipe
	m.schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	m.alive = func() bool { return m.client != nil && m.client.IsConnected() }
	if cfg.HealthCheckInterval > 0 {
		go m.watchdog(cfg.HealthCheckInterval)
	}
	return m
}

// SetOnChange registers the state-change hook. Call before Connect.
func (m *Manager) SetOnChange(fn func(Status)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// SetOnMessage registers the incoming-message hook. Call before Connect.
func (m *Manager) SetOnMessage(fn func(client *whatsmeow.Client, msg *events.Message)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Status {
	return Status{
		RunID:       m.runID,
		State:       m.state,
		QRCode:      m.qrCode,
		PairingCode: m.pairingCode,
		LastError:   m.lastError,
		Attempts:    m.attempts,
		Number:      m.cfg.Number,
		StartedAt:   m.startedAt,
		ConnectedAt: m.connectedAt,
	}
}

// Connect establishes the session. Safe to invoke repeatedly: while a dial
// is already in flight it does nothing, so overlapping reconnect timers
// cannot open a second socket.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.dialing {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	m.applyEventLocked(Event{Kind: EventDial})
	m.mu.Unlock()
	m.notify()

	err := m.dial(ctx)

	m.mu.Lock()
	m.dialing = false
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Msg("connection attempt failed")
		m.handleEvent(Event{Kind: EventFailure, Err: err})
	}
}

// Shutdown disconnects and releases the store. The manager schedules no
// further reconnects afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.closeClientLocked()
	m.state = StateDisconnected
	m.mu.Unlock()
	m.log.Info().Msg("session manager stopped")
}

func (m *Manager) handleEvent(ev Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.applyEventLocked(ev)
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) applyEventLocked(ev Event) {
	next, actions := Transition(m.state, ev)
	prev := m.state
	m.state = next

	switch ev.Kind {
	case EventQRCode:
		m.qrCode = ev.Code
		m.pairingCode = ""
	case EventPairingCode:
		m.pairingCode = ev.Code
		m.qrCode = ""
	case EventOpened:
		m.qrCode = ""
		m.pairingCode = ""
		m.lastError = ""
		m.connectedAt = time.Now()
	}
	if ev.Err != nil {
		m.lastError = ev.Err.Error()
	}

	for _, action := range actions {
		switch action {
		case ActionResetAttempts:
			m.attempts = 0
		case ActionWipeCredentials:
			m.wipeLocked()
		case ActionRetryFixed:
			m.scheduleRetryLocked(m.policy.WipeDelay)
		case ActionRetryBackoff:
			m.retryBackoffLocked()
		}
	}

	if prev != next {
		m.log.Info().Str("from", string(prev)).Str("to", string(next)).Msg("state changed")
	}
}

func (m *Manager) wipeLocked() {
	m.closeClientLocked()
	if err := m.wipeCreds(); err != nil {
		m.log.Error().Err(err).Msg("failed to wipe credentials")
		return
	}
	m.attempts = 0
	m.log.Warn().Msg("credentials wiped, fresh pairing required")
}

func (m *Manager) retryBackoffLocked() {
	m.attempts++
	if m.policy.limitReached(m.attempts) && m.policy.WipeOnLimit {
		m.log.Warn().Int("attempts", m.attempts).Msg("reconnect limit reached, wiping session")
		m.wipeLocked()
		m.scheduleRetryLocked(m.policy.WipeDelay)
		return
	}
	m.scheduleRetryLocked(m.policy.Delay(m.attempts - 1))
}

// scheduleRetryLocked arms exactly one pending reconnect timer. The
// retryPending flag is what keeps two close events from stacking timers.
func (m *Manager) scheduleRetryLocked(delay time.Duration) {
	if m.retryPending || m.closed {
		return
	}
	m.retryPending = true
	m.log.Info().Dur("delay", delay).Int("attempt", m.attempts).Msg("reconnect scheduled")
	m.schedule(delay, func() {
		m.mu.Lock()
		m.retryPending = false
		m.mu.Unlock()
		m.Connect(context.Background())
	})
}

func (m *Manager) closeClientLocked() {
	if m.client != nil {
		m.client.Disconnect()
		m.client = nil
	}
	if m.container != nil {
		m.container.Close()
		m.container = nil
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	cb := m.onChange
	st := m.snapshotLocked()
	m.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// dialWhatsmeow is the production dial path: open the store, build the
// client, then either resume the stored session or start pairing.
func (m *Manager) dialWhatsmeow(ctx context.Context) error {
	m.mu.Lock()
	if m.container == nil {
		if m.store.exists() && !m.store.validate(ctx, m.waLog.Sub("Database")) {
			m.log.Warn().Msg("stored session is invalid, wiping before connect")
			m.store.wipe()
		}
		container, err := m.store.open(ctx, m.waLog.Sub("Database"))
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.container = container
	}

	if m.client == nil {
		device, err := m.container.GetFirstDevice(ctx)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("loading device: %w", err)
		}
		client := whatsmeow.NewClient(device, newFilteredLogger(m.waLog.Sub("Client")))
		// reconnection is this manager's job, not whatsmeow's
		client.EnableAutoReconnect = false
		client.AddEventHandler(m.handleSocketEvent)
		m.client = client
	}
	client := m.client
	m.mu.Unlock()

	if client.Store.ID == nil {
		if m.cfg.PairingMethod == core.PairingMethodCode {
			return m.pairWithCode(ctx, client, m.cfg.Number)
		}
		return m.pairWithQR(ctx, client)
	}

	if client.IsConnected() {
		return nil
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

func (m *Manager) pairWithQR(ctx context.Context, client *whatsmeow.Client) error {
	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	go func() {
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				m.handleEvent(Event{Kind: EventQRCode, Code: evt.Code})
				qrterminal.GenerateWithConfig(evt.Code, qrterminal.Config{
					HalfBlocks: true,
					Level:      qrterminal.L,
					Writer:     os.Stdout,
					QuietZone:  1,
				})
			case "success":
				m.log.Info().Msg("qr pairing successful")
			case "timeout":
				m.handleEvent(Event{Kind: EventFailure, Err: fmt.Errorf("qr pairing timed out")})
			default:
				if evt.Error != nil {
					m.handleEvent(Event{Kind: EventFailure, Err: evt.Error})
				}
			}
		}
	}()
	return nil
}

// pairWithCode requests a numeric linking code. A failed request is retried
// once with a different device fingerprint before giving up.
func (m *Manager) pairWithCode(ctx context.Context, client *whatsmeow.Client, number string) error {
	if !client.IsConnected() {
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
	}

	code, err := client.PairPhone(ctx, number, false, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		m.log.Warn().Err(err).Msg("pairing code request failed, retrying with another fingerprint")
		code, err = client.PairPhone(ctx, number, false, whatsmeow.PairClientFirefox, "Firefox (Linux)")
		if err != nil {
			return fmt.Errorf("requesting pairing code: %w", err)
		}
	}

	m.log.Info().Str("code", code).Msg("pairing code issued, enter it on your phone")
	m.handleEvent(Event{Kind: EventPairingCode, Code: code})
	return nil
}

// RequestPairingCode serves the presenter's POST endpoint: issue a linking
// code for number on the current unpaired client.
func (m *Manager) RequestPairingCode(ctx context.Context, number string) (string, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return "", fmt.Errorf("client not initialized yet")
	}
	if client.Store.ID != nil {
		return "", fmt.Errorf("already paired, wipe credentials first")
	}

	if err := m.pairWithCode(ctx, client, number); err != nil {
		return "", err
	}

	m.mu.Lock()
	code := m.pairingCode
	m.mu.Unlock()
	return code, nil
}

// healthCheck arms a reconnect when the socket died without surfacing any
// event. With whatsmeow's auto-reconnect disabled nothing else would notice.
func (m *Manager) healthCheck() {
	m.mu.Lock()
	stale := !m.closed && m.state == StateConnected && !m.alive()
	m.mu.Unlock()
	if stale {
		m.log.Warn().Msg("health check: connection lost, scheduling reconnect")
		m.handleEvent(Event{Kind: EventClosed, Err: fmt.Errorf("connection lost (health check)")})
	}
}

func (m *Manager) watchdog(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		m.healthCheck()
	}
}

func (m *Manager) handleSocketEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		m.log.Info().Msg("connected to WhatsApp")
		m.handleEvent(Event{Kind: EventOpened})
		go m.announcePresence()

	case *events.PairSuccess:
		m.log.Info().Str("jid", v.ID.String()).Msg("device paired")

	case *events.LoggedOut:
		m.log.Warn().Msgf("logged out by server: %v", v.Reason)
		m.handleEvent(Event{Kind: EventClosed, Permanent: true, Err: fmt.Errorf("logged out: %v", v.Reason)})

	case *events.StreamReplaced:
		m.log.Warn().Msg("stream replaced by another session")
		m.handleEvent(Event{Kind: EventClosed, Permanent: true, Err: fmt.Errorf("stream replaced")})

	case *events.Disconnected:
		m.log.Warn().Msg("disconnected from WhatsApp")
		m.handleEvent(Event{Kind: EventClosed})

	// whatsmeow marks the disconnects behind these as expected, so no
	// events.Disconnected follows them. They must schedule the retry
	// themselves or the manager stalls.
	case *events.ConnectFailure:
		m.log.Error().Str("reason", v.Reason.String()).Msg("server refused connection")
		m.handleEvent(Event{Kind: EventFailure, Err: fmt.Errorf("connect failure: %s", v.Reason.String())})

	case *events.TemporaryBan:
		m.log.Error().Str("code", v.Code.String()).Dur("expire", v.Expire).Msg("temporarily banned")
		m.handleEvent(Event{Kind: EventFailure, Err: fmt.Errorf("temporary ban (%s), expires in %v", v.Code.String(), v.Expire)})

	case *events.ClientOutdated:
		m.log.Error().Msg("client version rejected by server")
		m.handleEvent(Event{Kind: EventFailure, Err: fmt.Errorf("client version rejected by server")})

	case *events.StreamError:
		m.log.Error().Str("code", v.Code).Msg("stream error")
		m.handleEvent(Event{Kind: EventClosed, Err: fmt.Errorf("stream error %s", v.Code)})

	case *events.CATRefreshError:
		m.log.Error().Err(v.Error).Msg("failed to refresh auth token")
		m.handleEvent(Event{Kind: EventFailure, Err: v.Error})

	case *events.KeepAliveTimeout:
		m.log.Warn().Int("errorCount", v.ErrorCount).Msg("keepalive timeout")

	case *events.Message:
		m.mu.Lock()
		handler := m.onMessage
		client := m.client
		m.mu.Unlock()
		if handler != nil && client != nil {
			handler(client, v)
		}
	}
}

func (m *Manager) announcePresence() {
	if !core.GetSettings().AutoOnline {
		return
	}
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.SendPresence(context.Background(), types.PresenceAvailable); err != nil {
		m.log.Warn().Err(err).Msg("failed to send presence")
	}
}
