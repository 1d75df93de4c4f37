// Package portfolio enforces the selection-budget and role-uniqueness rules a
// portfolio must satisfy before a commitment may be built from it. Validation
// is pure and side-effect free, so callers can run it on every incremental
// selection change for live feedback.
package portfolio

import (
	"fmt"

	"github.com/clapogame/clapobot/internal/catalog"
	"github.com/clapogame/clapobot/internal/domain"
)

// Reason identifies which rule a selection violated.
type Reason string

const (
	ReasonTooFewAssets   Reason = "too_few_assets"
	ReasonTooManyAssets  Reason = "too_many_assets"
	ReasonUnknownAsset   Reason = "unknown_asset"
	ReasonDuplicateAsset Reason = "duplicate_asset"
	ReasonBudgetExceeded Reason = "budget_exceeded"
	ReasonRoleMismatch   Reason = "role_count_mismatch"
	ReasonMissingLeader  Reason = "missing_leader"
	ReasonMissingCoLead  Reason = "missing_co_leader"
	ReasonDuplicateRole  Reason = "duplicate_role"
)

// ValidationError reports a violated selection rule. It is always local and
// recoverable: the caller fixes the selection and validates again.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("portfolio: %s", e.Reason)
	}
	return fmt.Sprintf("portfolio: %s: %s", e.Reason, e.Detail)
}

func fail(reason Reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Validator checks selections against a catalog.
type Validator struct {
	catalog *catalog.Catalog
}

// NewValidator creates a Validator over the given catalog.
func NewValidator(c *catalog.Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate checks every selection rule and returns the first violation:
// exactly seven entries, all distinct and known, total cost within budget,
// and exactly one leader plus one co-leader with the rest regular.
func (v *Validator) Validate(sel domain.Selection) error {
	if len(sel.Symbols) < domain.RequiredAssets {
		return fail(ReasonTooFewAssets, "need %d assets, have %d", domain.RequiredAssets, len(sel.Symbols))
	}
	if len(sel.Symbols) > domain.RequiredAssets {
		return fail(ReasonTooManyAssets, "need %d assets, have %d", domain.RequiredAssets, len(sel.Symbols))
	}
	if len(sel.Roles) != len(sel.Symbols) {
		return fail(ReasonRoleMismatch, "%d roles for %d assets", len(sel.Roles), len(sel.Symbols))
	}

	seen := make(map[string]bool, len(sel.Symbols))
	total := 0
	for _, sym := range sel.Symbols {
		asset, ok := v.catalog.Get(sym)
		if !ok {
			return fail(ReasonUnknownAsset, "%s is not in the catalog", sym)
		}
		if seen[sym] {
			return fail(ReasonDuplicateAsset, "%s selected twice", sym)
		}
		seen[sym] = true
		total += asset.Cost
	}
	if total > domain.MaxBudget {
		return fail(ReasonBudgetExceeded, "total cost %d exceeds budget %d", total, domain.MaxBudget)
	}

	leaders, coLeaders := 0, 0
	for i, role := range sel.Roles {
		switch role {
		case domain.RoleLeader:
			leaders++
		case domain.RoleCoLeader:
			coLeaders++
		case domain.RoleRegular:
		default:
			return fail(ReasonRoleMismatch, "unknown role %d at index %d", role, i)
		}
	}
	if leaders == 0 {
		return fail(ReasonMissingLeader, "no leader assigned")
	}
	if leaders > 1 {
		return fail(ReasonDuplicateRole, "%d leaders assigned", leaders)
	}
	if coLeaders == 0 {
		return fail(ReasonMissingCoLead, "no co-leader assigned")
	}
	if coLeaders > 1 {
		return fail(ReasonDuplicateRole, "%d co-leaders assigned", coLeaders)
	}

	return nil
}

// TotalCost sums the catalog cost of every selected symbol. Unknown symbols
// count as zero; Validate rejects them separately.
func (v *Validator) TotalCost(sel domain.Selection) int {
	total := 0
	for _, sym := range sel.Symbols {
		total += v.catalog.Cost(sym)
	}
	return total
}
