package domain

import "time"

// Phase is the ledger-owned lifecycle phase of a match. The ledger is the
// sole writer; the client only observes snapshots.
type Phase uint8

const (
	PhaseCreated   Phase = 0 // one player committed, awaiting opponent
	PhaseCommitted Phase = 1 // both players committed, awaiting start
	PhaseStarted   Phase = 2 // price window running
	PhaseEnded     Phase = 3 // window elapsed, awaiting reveals
	PhaseSettled   Phase = 4 // terminal: scored and paid out
	PhaseExpired   Phase = 5 // terminal: cancelled or force-expired
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseCommitted:
		return "committed"
	case PhaseStarted:
		return "started"
	case PhaseEnded:
		return "ended"
	case PhaseSettled:
		return "settled"
	case PhaseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseSettled || p == PhaseExpired
}

// StakeRef identifies the NFT a player locks as stake: the token contract
// address and the token id within it.
type StakeRef struct {
	Contract string
	TokenID  uint64
}

// PlayerSlot is one side of a match as reported by the ledger.
type PlayerSlot struct {
	Address    string
	Stake      StakeRef
	CommitHash [32]byte
	Committed  bool
	Revealed   bool
}

// Empty reports whether the slot has not been claimed by any player.
func (s PlayerSlot) Empty() bool {
	return !s.Committed
}

// MatchSnapshot is a read-through copy of the ledger's match record. It is
// valid for one read-then-act sequence only; callers must re-read before
// acting on it again.
type MatchSnapshot struct {
	ID        uint64
	Phase     Phase
	CreatedAt time.Time
	StartedAt time.Time // zero until the match starts
	Players   [2]PlayerSlot
}

// SlotOf returns the player slot for the given address together with its
// index, or ok=false when the address is not part of the match.
func (m MatchSnapshot) SlotOf(address string) (slot PlayerSlot, idx int, ok bool) {
	for i, p := range m.Players {
		if p.Address != "" && equalAddress(p.Address, address) {
			return p, i, true
		}
	}
	return PlayerSlot{}, 0, false
}

// Revealable reports whether the ledger-owned data says the price window has
// elapsed: either the ledger already reports Ended or later, or the window
// measured from the ledger's own start timestamp has run out. The local
// countdown is never consulted here.
func (m MatchSnapshot) Revealable(now time.Time, duration time.Duration) bool {
	if m.Phase == PhaseEnded {
		return true
	}
	if m.Phase == PhaseStarted && !m.StartedAt.IsZero() {
		return now.Sub(m.StartedAt) >= duration
	}
	return false
}

// Age returns the time since the match's last meaningful transition: the
// start of the price window when started, the creation time otherwise.
func (m MatchSnapshot) Age(now time.Time) time.Duration {
	if !m.StartedAt.IsZero() {
		return now.Sub(m.StartedAt)
	}
	return now.Sub(m.CreatedAt)
}

func equalAddress(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
