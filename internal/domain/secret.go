package domain

// Secret is the reveal secret created at commit time: the exact selection,
// role assignment, and salt the commitment hash was derived from. It never
// leaves the process until reveal, and losing it between commit and reveal
// makes the match unrecoverable for this participant.
type Secret struct {
	Symbols []string `json:"symbols"`
	Roles   []Role   `json:"roles"`
	Salt    string   `json:"salt"`
}

// Selection returns the portfolio selection embedded in the secret.
func (s Secret) Selection() Selection {
	return Selection{Symbols: s.Symbols, Roles: s.Roles}
}

// Complete reports whether all three parts of the secret are present. A
// partially persisted secret is an inconsistent state that must be routed to
// recovery, never acted upon.
func (s Secret) Complete() bool {
	return len(s.Symbols) == RequiredAssets &&
		len(s.Roles) == len(s.Symbols) &&
		s.Salt != ""
}
