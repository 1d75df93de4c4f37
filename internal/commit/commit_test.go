package commit

import (
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/domain"
)

func sampleSelection() domain.Selection {
	return domain.Selection{
		Symbols: []string{"BTC", "ETH", "ADA", "DOGE", "TRX", "SHIB", "PEPE"},
		Roles: []domain.Role{
			domain.RoleLeader, domain.RoleCoLeader,
			domain.RoleRegular, domain.RoleRegular, domain.RoleRegular,
			domain.RoleRegular, domain.RoleRegular,
		},
	}
}

func TestBuildDeterministic(t *testing.T) {
	sel := sampleSelection()
	salt := "clapo-1700000000000000000-00000000-0000-0000-0000-000000000000"

	first := Build(sel, salt)
	second := Build(sel, salt)
	assert.Equal(t, first, second)
	assert.NotEqual(t, [32]byte{}, first)
}

func TestBuildSensitivity(t *testing.T) {
	sel := sampleSelection()
	salt := "clapo-1-a"
	base := Build(sel, salt)

	reordered := sampleSelection()
	reordered.Symbols[2], reordered.Symbols[3] = reordered.Symbols[3], reordered.Symbols[2]
	assert.NotEqual(t, base, Build(reordered, salt),
		"asset order must be part of the commitment")

	reroled := sampleSelection()
	reroled.Roles[0], reroled.Roles[1] = reroled.Roles[1], reroled.Roles[0]
	assert.NotEqual(t, base, Build(reroled, salt),
		"role assignment must be part of the commitment")

	assert.NotEqual(t, base, Build(sel, "clapo-1-b"),
		"salt must be part of the commitment")
}

func TestBuildPackedLayout(t *testing.T) {
	sel := domain.Selection{
		Symbols: []string{"BTC", "ETH"},
		Roles:   []domain.Role{domain.RoleLeader, domain.RoleRegular},
	}
	salt := "clapo-layout"

	// Reproduce the packed encoding by hand: symbol-hash words, role words
	// with the code in the final byte, then the salt-hash word.
	var buf []byte
	for _, sym := range sel.Symbols {
		buf = append(buf, ethcrypto.Keccak256([]byte(sym))...)
	}
	for _, role := range sel.Roles {
		word := make([]byte, 32)
		word[31] = byte(role)
		buf = append(buf, word...)
	}
	buf = append(buf, ethcrypto.Keccak256([]byte(salt))...)

	var want [32]byte
	copy(want[:], ethcrypto.Keccak256(buf))
	assert.Equal(t, want, Build(sel, salt))
}

func TestFromSecretMatchesBuild(t *testing.T) {
	sel := sampleSelection()
	salt := NewSalt()

	secret := domain.Secret{Symbols: sel.Symbols, Roles: sel.Roles, Salt: salt}
	require.True(t, secret.Complete())
	assert.Equal(t, Build(sel, salt), FromSecret(secret))
}

func TestSymbolHash(t *testing.T) {
	var want [32]byte
	copy(want[:], ethcrypto.Keccak256([]byte("BTC")))
	assert.Equal(t, want, SymbolHash("BTC"))
	assert.NotEqual(t, SymbolHash("BTC"), SymbolHash("ETH"))
}

func TestNewSaltFormat(t *testing.T) {
	a := NewSalt()
	b := NewSalt()

	assert.NotEqual(t, a, b)
	for _, salt := range []string{a, b} {
		parts := strings.SplitN(salt, "-", 3)
		require.Len(t, parts, 3)
		assert.Equal(t, "clapo", parts[0])
		assert.NotEmpty(t, parts[1])
		assert.Len(t, parts[2], 36, "uuid portion")
	}
}
