package shared

// ExitReason represents the terminal reason of a simulated trade.
type ExitReason int

const (
	// Running is the reason of a trade that has not terminated.
	Running ExitReason = iota
	Stopped
	TargetHit
	TimedOut
	SessionEnd
)

// String stringifies the provided exit reason.
func (r ExitReason) String() string {
	switch r {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case TargetHit:
		return "target_hit"
	case TimedOut:
		return "timed_out"
	case SessionEnd:
		return "session_end"
	default:
		return "unknown"
	}
}

// Direction represents market direction.
type Direction int

const (
	Long Direction = iota
	Short
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// Sign returns 1 for longs and -1 for shorts.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}

	return 1
}
