package session

// State is the connection lifecycle state. Exactly one Manager per process
// owns it, and every change goes through Transition.
type State string

const (
	StateDisconnected     State = "disconnected"
	StateConnecting       State = "connecting"
	StateQRReady          State = "qr_ready"
	StatePairingCodeReady State = "pairing_code_ready"
	StateConnected        State = "connected"
	StateError            State = "error"
)

// EventKind classifies a socket lifecycle event.
type EventKind int

const (
	// EventDial means a connection attempt has started.
	EventDial EventKind = iota
	// EventQRCode carries a fresh QR challenge in Code.
	EventQRCode
	// EventPairingCode carries a numeric linking code in Code.
	EventPairingCode
	// EventOpened means the session is established and authenticated.
	EventOpened
	// EventClosed means the socket dropped. Permanent marks an authoritative
	// close (logged out or superseded by another session): the stored
	// credentials are no longer valid.
	EventClosed
	// EventFailure is an error outside the normal close path.
	EventFailure
)

// Event is a socket lifecycle event reduced to what the state machine needs.
type Event struct {
	Kind      EventKind
	Code      string
	Permanent bool
	Err       error
}

// Action is a side effect the Manager must perform after a transition.
type Action int

const (
	ActionWipeCredentials Action = iota
	ActionRetryFixed
	ActionRetryBackoff
	ActionResetAttempts
)

// Transition is the pure state machine: no I/O, no timers, no locking.
// Keeping it pure lets the reconnect policy be tested without a socket.
func Transition(s State, ev Event) (State, []Action) {
	switch ev.Kind {
	case EventDial:
		return StateConnecting, nil
	case EventQRCode:
		return StateQRReady, nil
	case EventPairingCode:
		return StatePairingCodeReady, nil
	case EventOpened:
		return StateConnected, []Action{ActionResetAttempts}
	case EventClosed:
		if ev.Permanent {
			return StateDisconnected, []Action{ActionWipeCredentials, ActionRetryFixed}
		}
		return StateDisconnected, []Action{ActionRetryBackoff}
	case EventFailure:
		return StateError, []Action{ActionRetryBackoff}
	}
	return s, nil
}
