package runner

// Phase tracks where a run is in its lifecycle. Failures before
// PhaseChannelsResolved abort the process; once resolution succeeds the run
// always reaches the summary, whatever happens to individual items.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseConfigValidated
	PhaseClientConnected
	PhaseChannelsResolved
	PhaseExecuting
	PhaseSummarized
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseConfigValidated:
		return "config_validated"
	case PhaseClientConnected:
		return "client_connected"
	case PhaseChannelsResolved:
		return "channels_resolved"
	case PhaseExecuting:
		return "executing"
	case PhaseSummarized:
		return "summarized"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
