package wsclient

// State is the client connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	NetworkError
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case NetworkError:
		return "network_error"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event drives a transition.
type Event int

const (
	EventConnect         Event = iota + 1 // owner became authenticated
	EventOpened                           // handshake accepted
	EventLost                             // transport lost, retries left
	EventGiveUp                           // transport lost, retries exhausted
	EventAuthRejected                     // closed with 1008
	EventCleanClose                       // closed with 1000
	EventNetworkDown                      // host went offline
	EventNetworkUp                        // host back online
	EventRetryDue                         // backoff or resume timer fired
	EventManualReconnect                  // user asked to retry
	EventLogout                           // explicit teardown
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventOpened:
		return "opened"
	case EventLost:
		return "lost"
	case EventGiveUp:
		return "give_up"
	case EventAuthRejected:
		return "auth_rejected"
	case EventCleanClose:
		return "clean_close"
	case EventNetworkDown:
		return "network_down"
	case EventNetworkUp:
		return "network_up"
	case EventRetryDue:
		return "retry_due"
	case EventManualReconnect:
		return "manual_reconnect"
	case EventLogout:
		return "logout"
	default:
		return "unknown"
	}
}

var transitions = map[State]map[Event]State{
	Disconnected: {
		EventConnect:         Connecting,
		EventManualReconnect: Connecting,
		EventLogout:          Disconnected,
	},
	Connecting: {
		EventOpened:          Connected,
		EventLost:            Reconnecting,
		EventGiveUp:          Failed,
		EventAuthRejected:    Failed,
		EventCleanClose:      Disconnected,
		EventNetworkDown:     NetworkError,
		EventManualReconnect: Connecting,
		EventLogout:          Disconnected,
	},
	Connected: {
		EventLost:            Reconnecting,
		EventGiveUp:          Failed,
		EventAuthRejected:    Failed,
		EventCleanClose:      Disconnected,
		EventNetworkDown:     NetworkError,
		EventManualReconnect: Connecting,
		EventLogout:          Disconnected,
	},
	Reconnecting: {
		EventRetryDue:        Connecting,
		EventNetworkDown:     NetworkError,
		EventManualReconnect: Connecting,
		EventLogout:          Disconnected,
	},
	NetworkError: {
		EventNetworkUp:       Reconnecting,
		EventManualReconnect: Connecting,
		EventLogout:          Disconnected,
	},
	Failed: {
		EventManualReconnect: Connecting,
		EventLogout:          Disconnected,
	},
}

// Next looks up the transition for ev in from. ok is false when the event
// is not accepted in that state.
func Next(from State, ev Event) (to State, ok bool) {
	to, ok = transitions[from][ev]
	return to, ok
}
