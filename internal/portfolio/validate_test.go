package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/catalog"
	"github.com/clapogame/clapobot/internal/domain"
)

func newSelection(symbols ...string) domain.Selection {
	roles := make([]domain.Role, len(symbols))
	if len(roles) > 0 {
		roles[0] = domain.RoleLeader
	}
	if len(roles) > 1 {
		roles[1] = domain.RoleCoLeader
	}
	return domain.Selection{Symbols: symbols, Roles: roles}
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Reason
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(catalog.Default())

	// BTC 30 + ETH 25 + ADA 10 + DOGE 9 + TRX 8 + PEPE 5 = 87 with SHIB 6 = 93.
	sel := newSelection("BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "PEPE")
	require.NoError(t, v.Validate(sel))
	assert.Equal(t, 93, v.TotalCost(sel))
}

func TestValidateBudgetExceeded(t *testing.T) {
	v := NewValidator(catalog.Default())

	// BTC 30 + ETH 25 + SOL 18 + ADA 10 + DOGE 9 + TRX 8 + PEPE 5 = 105.
	over := newSelection("BTC", "ETH", "SOL", "ADA", "DOGE", "TRX", "PEPE")
	assert.Equal(t, ReasonBudgetExceeded, reasonOf(t, v.Validate(over)))
	assert.Equal(t, 105, v.TotalCost(over))

	// Swapping SOL for SHIB brings the cost back under budget.
	under := newSelection("BTC", "ETH", "SHIB", "ADA", "DOGE", "TRX", "PEPE")
	assert.NoError(t, v.Validate(under))
	assert.Equal(t, 93, v.TotalCost(under))
}

func TestValidateAssetCount(t *testing.T) {
	v := NewValidator(catalog.Default())

	assert.Equal(t, ReasonTooFewAssets,
		reasonOf(t, v.Validate(newSelection("BTC", "ETH", "ADA"))))
	assert.Equal(t, ReasonTooManyAssets,
		reasonOf(t, v.Validate(newSelection("BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "PEPE", "SUI"))))
}

func TestValidateUnknownAndDuplicateAssets(t *testing.T) {
	v := NewValidator(catalog.Default())

	assert.Equal(t, ReasonUnknownAsset,
		reasonOf(t, v.Validate(newSelection("BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "WAT"))))
	assert.Equal(t, ReasonDuplicateAsset,
		reasonOf(t, v.Validate(newSelection("BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "SHIB"))))
}

func TestValidateRoles(t *testing.T) {
	v := NewValidator(catalog.Default())
	symbols := []string{"BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "PEPE"}

	roles := func(rs ...domain.Role) []domain.Role { return rs }
	r, c := domain.RoleRegular, domain.RoleCoLeader
	l := domain.RoleLeader

	cases := []struct {
		name   string
		roles  []domain.Role
		reason Reason
	}{
		{"missing leader", roles(r, c, r, r, r, r, r), ReasonMissingLeader},
		{"missing co-leader", roles(l, r, r, r, r, r, r), ReasonMissingCoLead},
		{"two leaders", roles(l, l, c, r, r, r, r), ReasonDuplicateRole},
		{"two co-leaders", roles(l, c, c, r, r, r, r), ReasonDuplicateRole},
		{"role count mismatch", roles(l, c, r), ReasonRoleMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := domain.Selection{Symbols: symbols, Roles: tc.roles}
			assert.Equal(t, tc.reason, reasonOf(t, v.Validate(sel)))
		})
	}
}

func TestRoleMultipliers(t *testing.T) {
	assert.Equal(t, 1.0, domain.RoleRegular.Multiplier())
	assert.Equal(t, 1.5, domain.RoleCoLeader.Multiplier())
	assert.Equal(t, 2.0, domain.RoleLeader.Multiplier())
}
