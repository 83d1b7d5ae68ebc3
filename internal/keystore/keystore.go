// Package keystore loads or generates the per-identity local encryption
// keypair and persists it to a named directory, one JSON file per
// identity, written atomically so a crash never leaves a partial file.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PublicKeySize and SecretKeySize match the Ed25519 key sizes used
// throughout the messenger (the secret key is the 64-byte expanded form:
// 32-byte seed plus public key, matching crypto/ed25519's convention).
const (
	PublicKeySize = ed25519.PublicKeySize
	SecretKeySize = ed25519.PrivateKeySize
)

// keyFile is the on-disk JSON shape: `{ "publicKey": [...], "secretKey": [...],
// "history": [...] }`. history holds superseded keypairs, oldest first, so a
// message encrypted before a rotation can still be decrypted after one.
type keyFile struct {
	PublicKey []byte    `json:"publicKey"`
	SecretKey []byte    `json:"secretKey"`
	History   []keyPair `json:"history,omitempty"`
}

type keyPair struct {
	PublicKey []byte `json:"publicKey"`
	SecretKey []byte `json:"secretKey"`
}

// DefaultKeysDir returns `<home>/.solana-messenger/keys`, the directory
// used when no explicit keys_dir configuration option is supplied.
func DefaultKeysDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("keystore: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".solana-messenger", "keys"), nil
}

// path returns the per-identity key file path: `<keysDir>/<identity>.json`.
func path(keysDir, identityBase58 string) string {
	return filepath.Join(keysDir, identityBase58+".json")
}

// LoadOrGenerate loads the persisted encryption keypair for identityBase58
// from keysDir if it exists; otherwise it generates a fresh Ed25519
// keypair, creates keysDir if needed, and atomically writes the file.
// wasGenerated reports which case occurred.
func LoadOrGenerate(identityBase58, keysDir string) (publicKey [PublicKeySize]byte, secretKey [SecretKeySize]byte, filePath string, wasGenerated bool, err error) {
	filePath = path(keysDir, identityBase58)

	if data, readErr := os.ReadFile(filePath); readErr == nil {
		publicKey, secretKey, err = decodeKeyFile(data)
		return publicKey, secretKey, filePath, false, err
	} else if !os.IsNotExist(readErr) {
		return publicKey, secretKey, filePath, false, fmt.Errorf("keystore: read %s: %w", filePath, readErr)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return publicKey, secretKey, filePath, false, fmt.Errorf("keystore: generate keypair: %w", err)
	}
	copy(publicKey[:], pub)
	copy(secretKey[:], priv)

	if err := store(filePath, publicKey, secretKey, nil); err != nil {
		return publicKey, secretKey, filePath, false, err
	}

	return publicKey, secretKey, filePath, true, nil
}

func decodeKeyFile(data []byte) (publicKey [PublicKeySize]byte, secretKey [SecretKeySize]byte, err error) {
	kf, err := parseKeyFile(data)
	if err != nil {
		return publicKey, secretKey, err
	}
	copy(publicKey[:], kf.PublicKey)
	copy(secretKey[:], kf.SecretKey)
	return publicKey, secretKey, nil
}

func parseKeyFile(data []byte) (keyFile, error) {
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return kf, fmt.Errorf("keystore: parse key file: %w", err)
	}
	if len(kf.PublicKey) != PublicKeySize {
		return kf, fmt.Errorf("keystore: publicKey has %d bytes, want %d", len(kf.PublicKey), PublicKeySize)
	}
	if len(kf.SecretKey) != SecretKeySize {
		return kf, fmt.Errorf("keystore: secretKey has %d bytes, want %d", len(kf.SecretKey), SecretKeySize)
	}
	return kf, nil
}

func store(filePath string, publicKey [PublicKeySize]byte, secretKey [SecretKeySize]byte, history []keyPair) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("keystore: create %s: %w", dir, err)
	}

	data, err := json.Marshal(keyFile{
		PublicKey: publicKey[:],
		SecretKey: secretKey[:],
		History:   history,
	})
	if err != nil {
		return fmt.Errorf("keystore: encode key file: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("keystore: persist %s: %w", filePath, err)
	}

	return nil
}

// LoadFile reads a keystore-format JSON keypair from an explicit path,
// outside the per-identity directory layout. Configuration files name an
// identity keypair this way.
func LoadFile(filePath string) (publicKey [PublicKeySize]byte, secretKey [SecretKeySize]byte, err error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return publicKey, secretKey, fmt.Errorf("keystore: read %s: %w", filePath, err)
	}
	return decodeKeyFile(data)
}

// Rotate generates a fresh encryption keypair for identityBase58, archiving
// the current one to the file's history so LoadHistory can still surface
// its secret half after the rotation. Returns the new keypair.
func Rotate(identityBase58, keysDir string) (publicKey [PublicKeySize]byte, secretKey [SecretKeySize]byte, err error) {
	filePath := path(keysDir, identityBase58)

	var history []keyPair
	data, readErr := os.ReadFile(filePath)
	switch {
	case readErr == nil:
		kf, parseErr := parseKeyFile(data)
		if parseErr != nil {
			return publicKey, secretKey, parseErr
		}
		history = append(kf.History, keyPair{PublicKey: kf.PublicKey, SecretKey: kf.SecretKey})
	case !os.IsNotExist(readErr):
		return publicKey, secretKey, fmt.Errorf("keystore: read %s: %w", filePath, readErr)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return publicKey, secretKey, fmt.Errorf("keystore: generate keypair: %w", err)
	}
	copy(publicKey[:], pub)
	copy(secretKey[:], priv)

	if err := store(filePath, publicKey, secretKey, history); err != nil {
		return publicKey, secretKey, err
	}
	return publicKey, secretKey, nil
}

// LoadHistory returns the secret halves of every encryption keypair this
// identity has superseded by rotation, oldest first. Returns an empty slice
// (not an error) if no key file exists yet or it carries no history.
func LoadHistory(identityBase58, keysDir string) ([][SecretKeySize]byte, error) {
	data, err := os.ReadFile(path(keysDir, identityBase58))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("keystore: read %s: %w", path(keysDir, identityBase58), err)
	}
	kf, err := parseKeyFile(data)
	if err != nil {
		return nil, err
	}

	secrets := make([][SecretKeySize]byte, 0, len(kf.History))
	for _, entry := range kf.History {
		if len(entry.SecretKey) != SecretKeySize {
			return nil, fmt.Errorf("keystore: history entry secretKey has %d bytes, want %d", len(entry.SecretKey), SecretKeySize)
		}
		var s [SecretKeySize]byte
		copy(s[:], entry.SecretKey)
		secrets = append(secrets, s)
	}
	return secrets, nil
}
