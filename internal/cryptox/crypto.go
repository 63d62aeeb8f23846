// Package cryptox holds the journal's cryptography: the AES-GCM entry cipher
// keyed by a rotating key id, and salted PIN hashing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophjournal/internal/common"
)

// KeyRing encrypts new entries with the active key and decrypts any entry
// whose key id it still holds. Keys are injected configuration; nothing here
// is derived from user input.
//
// Ciphertext layout: nonce (12 bytes) || AES-GCM sealed box. The key id is
// bound in as additional authenticated data, so a blob relabelled with a
// different key id fails authentication.
type KeyRing struct {
	aeads  map[string]cipher.AEAD
	active string
}

// NewKeyRing validates every key (16, 24 or 32 bytes) and the active id.
func NewKeyRing(keys map[string][]byte, activeID string) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("key ring: no encryption keys configured")
	}
	ring := &KeyRing{aeads: make(map[string]cipher.AEAD, len(keys)), active: activeID}
	for id, key := range keys {
		if err := validateKeyID(id); err != nil {
			return nil, err
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("key ring: key %q: %w", id, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key ring: key %q: %w", id, err)
		}
		ring.aeads[id] = aead
	}
	if _, ok := ring.aeads[activeID]; !ok {
		return nil, fmt.Errorf("key ring: active key %q is not configured", activeID)
	}
	return ring, nil
}

// ParseKeys reads the configuration form "id1:base64key,id2:base64key".
func ParseKeys(raw string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, encoded, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("key ring: entry %q is not id:base64", part)
		}
		id = strings.TrimSpace(id)
		if _, dup := keys[id]; dup {
			return nil, fmt.Errorf("key ring: duplicate key id %q", id)
		}
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, fmt.Errorf("key ring: key %q: %w", id, err)
		}
		keys[id] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key ring: no encryption keys configured")
	}
	return keys, nil
}

func validateKeyID(id string) error {
	if id == "" || len(id) > 64 || strings.ContainsAny(id, ":, \t\n") {
		return fmt.Errorf("key ring: invalid key id %q", id)
	}
	return nil
}

// ActiveKeyID is the id stamped on newly encrypted entries.
func (k *KeyRing) ActiveKeyID() string { return k.active }

// KeyIDs lists the configured ids in sorted order.
func (k *KeyRing) KeyIDs() []string {
	ids := make([]string, 0, len(k.aeads))
	for id := range k.aeads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Encrypt seals plaintext under the active key and returns the blob together
// with the key id that must be stored beside it.
func (k *KeyRing) Encrypt(plaintext string) ([]byte, string, error) {
	aead := k.aeads[k.active]
	nonce := common.GenerateRandByteArray(aead.NonceSize())

	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), []byte(k.active))
	return out, k.active, nil
}

// Decrypt opens a blob produced by Encrypt. Unknown key ids, truncated blobs
// and authentication failures all yield common.ErrDecryptionFailed; no
// partial plaintext is ever returned.
func (k *KeyRing) Decrypt(blob []byte, keyID string) (string, error) {
	aead, ok := k.aeads[keyID]
	if !ok {
		return "", fmt.Errorf("%w: unknown key id %q", common.ErrDecryptionFailed, keyID)
	}
	ns := aead.NonceSize()
	if len(blob) < ns+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", common.ErrDecryptionFailed)
	}
	plaintext, err := aead.Open(nil, blob[:ns], blob[ns:], []byte(keyID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
