package core

// Verdict is the outcome of mute arbitration for one send attempt.
type Verdict int

const (
	// VerdictBlocked refuses the message: nothing is persisted and only the
	// sender is told.
	VerdictBlocked Verdict = iota
	// VerdictSuppressed persists the message flagged suppressed and echoes
	// it to the sender alone.
	VerdictSuppressed
	// VerdictBroadcast persists the message and fans it out to the channel.
	VerdictBroadcast
)

func (v Verdict) String() string {
	switch v {
	case VerdictBlocked:
		return "blocked"
	case VerdictSuppressed:
		return "suppressed"
	case VerdictBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Decide combines the three mute mechanisms into one verdict. The ordering
// is deliberate: the channel creator or an admin bypasses a whole-channel
// mute, but an individual mute (channel-scoped or global) beats the bypass.
// Evaluated fresh on every send; nothing here is cached.
func Decide(channelMuted, bypass, individuallyMuted bool) Verdict {
	if channelMuted && !bypass {
		return VerdictBlocked
	}
	if individuallyMuted {
		return VerdictSuppressed
	}
	return VerdictBroadcast
}
