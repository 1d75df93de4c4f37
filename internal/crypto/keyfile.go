package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// KeyConfig carries the information LoadKey needs to resolve the wallet's
// private key. Populate the fields from the [wallet] config section.
type KeyConfig struct {
	// RawPrivateKey is the hex-encoded private key (with or without 0x
	// prefix). If non-empty, LoadKey returns it directly.
	RawPrivateKey string

	// EncryptedKeyPath is the path to a file produced by Seal.
	EncryptedKeyPath string

	// KeyPassphrase decrypts the file at EncryptedKeyPath.
	KeyPassphrase string
}

// LoadKey resolves the wallet private key: the raw key takes precedence,
// then the encrypted key file.
func LoadKey(cfg KeyConfig) (string, error) {
	if cfg.RawPrivateKey != "" {
		k := strings.TrimPrefix(cfg.RawPrivateKey, "0x")
		if _, err := hex.DecodeString(k); err != nil {
			return "", fmt.Errorf("crypto: private key is not valid hex: %w", err)
		}
		return k, nil
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		plain, err := Open(data, cfg.KeyPassphrase)
		if err != nil {
			return "", err
		}
		k := strings.TrimPrefix(strings.TrimSpace(string(plain)), "0x")
		if _, err := hex.DecodeString(k); err != nil {
			return "", fmt.Errorf("crypto: decrypted key is not valid hex: %w", err)
		}
		return k, nil
	}

	return "", errors.New("crypto: no private key source configured (set private_key or encrypted_key_path)")
}
