package domain

// Tier buckets assets by cost. Tier A assets are the most expensive picks,
// tier E the cheapest.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
	TierE Tier = "E"
)

// Asset is one entry of the static asset catalog. The catalog is reference
// data: it is fixed for the lifetime of the process and shared by both
// players of a match.
type Asset struct {
	Symbol string
	Name   string
	Cost   int
	Tier   Tier
}

// Role is the multiplier slot an asset occupies inside a portfolio. The
// integer codes are part of the commitment encoding and must not change.
type Role uint8

const (
	RoleRegular  Role = 0
	RoleCoLeader Role = 1
	RoleLeader   Role = 2
)

// Multiplier returns the scoring weight for the role.
func (r Role) Multiplier() float64 {
	switch r {
	case RoleLeader:
		return 2.0
	case RoleCoLeader:
		return 1.5
	default:
		return 1.0
	}
}

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleCoLeader:
		return "co-leader"
	default:
		return "regular"
	}
}

// Selection is an ordered portfolio pick: seven asset symbols with a parallel
// role assignment. Order matters: the commitment binds the exact sequence.
type Selection struct {
	Symbols []string
	Roles   []Role
}

// RequiredAssets is the exact number of assets a portfolio must contain.
const RequiredAssets = 7

// MaxBudget is the total cost budget a portfolio may spend.
const MaxBudget = 100
