// Package commit derives the cryptographic commitment that binds a player to
// a hidden portfolio. The encoding matches the Matchmaker contract's
// verification byte for byte: keccak256 over the packed concatenation of the
// per-asset symbol hashes, the 32-byte-padded role codes in the same order,
// and the keccak256 of the salt string. Any reordering or re-encoding
// produces a different hash and an unrecoverable reveal failure, so this
// layout must never change.
package commit

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/clapogame/clapobot/internal/domain"
)

const wordSize = 32

// SymbolHash returns the fixed-width asset identifier the ledger uses:
// keccak256 of the symbol's canonical string form.
func SymbolHash(symbol string) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(symbol)))
	return out
}

// SaltHash returns keccak256 of the salt string. The reveal submits this
// hash, not the raw salt.
func SaltHash(salt string) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(salt)))
	return out
}

// Build computes the commitment hash for a selection and salt. The caller is
// responsible for validating the selection first; Build only requires the
// symbol and role slices to be the same length.
func Build(sel domain.Selection, salt string) [32]byte {
	// Packed layout: n asset-hash words, n role words, one salt-hash word.
	buf := make([]byte, 0, (2*len(sel.Symbols)+1)*wordSize)

	for _, sym := range sel.Symbols {
		h := SymbolHash(sym)
		buf = append(buf, h[:]...)
	}
	for _, role := range sel.Roles {
		var word [wordSize]byte
		word[wordSize-1] = byte(role)
		buf = append(buf, word[:]...)
	}
	sh := SaltHash(salt)
	buf = append(buf, sh[:]...)

	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf))
	return out
}

// FromSecret rebuilds the commitment from a persisted secret. The result
// must equal the hash submitted at commit time; a mismatch means the secret
// was corrupted and the match cannot be revealed.
func FromSecret(secret domain.Secret) [32]byte {
	return Build(secret.Selection(), secret.Salt)
}
