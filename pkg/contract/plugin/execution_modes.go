package plugin

const (
	// ModeRun executes plugins against real data.
	ModeRun Mode = iota

	// ModeDryRun only propagates schemas through the plugins.
	ModeDryRun
)

// Mode controls whether the host drives plugins with frames (run)
// or with schemas (dry-run).
type Mode int

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeDryRun:
		return "dry-run"
	default:
		return "unknown"
	}
}
