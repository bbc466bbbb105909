// Package proto defines the event kinds drained by the session loop and
// the wire codecs shared with external collaborators (telemetry frames,
// time sync payloads).
package proto

// Kind identifies the event type carried in kernel.Event.Kind.
type Kind uint16

const (
	// EvCommand carries one command line from a remote console or the
	// telemetry command topic. Payload: raw line bytes.
	EvCommand Kind = iota + 1
	// EvTimeSync carries a wall-clock value from an external sync.
	EvTimeSync
	// EvLink reports a network link state change.
	EvLink
	// EvAttach reports a remote console client arriving.
	EvAttach
	// EvDetach reports a remote console client leaving.
	EvDetach
)

func (k Kind) String() string {
	switch k {
	case EvCommand:
		return "command"
	case EvTimeSync:
		return "time_sync"
	case EvLink:
		return "link"
	case EvAttach:
		return "attach"
	case EvDetach:
		return "detach"
	default:
		return "unknown"
	}
}
