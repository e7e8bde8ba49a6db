// Package store is the node's encrypted share store: a badger-backed
// key/value layer holding every passphrase's FROST key package and public
// key package, sealed at rest under a key derived from the node's HSM.
//
// Keys are "{curve}:{namespace}:{passphrase}" with namespace one of
// "keypackage" or "pubkeypackage" — a flat stand-in for the column-family
// split a real RocksDB-backed store would use per curve, since badger has
// none. Values are "[version:1][nonce:12][ciphertext||tag]"; the
// passphrase, curve, and namespace are bound in as AEAD associated data so
// a ciphertext can't be replayed under a different key.
package store

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"frostcustody/frost/core/curve"
	"frostcustody/hsm"
	"frostcustody/rng"
)

const (
	namespaceKeyPackage    = "keypackage"
	namespacePubKeyPackage = "pubkeypackage"

	valueVersion byte = 1

	aeadKeyInfo = "share-store-aead"
)

// Manager owns the badger database and the HSM-derived AEAD key used to
// seal every value in it.
type Manager struct {
	db        *badger.DB
	provider  hsm.Provider
	nodeIndex int

	keyMu    sync.Mutex
	aeadKey  []byte // nil until derived; cleared on InvalidateKeyCache

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // per "curve:passphrase" write mutex
}

// Open opens (or creates) the badger database at path and binds it to
// provider for AEAD key derivation. nodeIndex disambiguates the storage
// label across nodes sharing one HSM config in tests.
func Open(path string, provider hsm.Provider, nodeIndex int) (*Manager, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Manager{
		db:        db,
		provider:  provider,
		nodeIndex: nodeIndex,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// InvalidateKeyCache drops the cached AEAD key. Call this whenever the HSM
// provider transitions to locked so a future Unlock re-derives instead of
// serving a key from before the lock.
func (m *Manager) InvalidateKeyCache() {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()
	m.aeadKey = nil
}

func (m *Manager) currentAEADKey() ([]byte, error) {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()

	if m.provider.IsLocked() {
		m.aeadKey = nil
		return nil, hsm.ErrLocked
	}
	if m.aeadKey != nil {
		return m.aeadKey, nil
	}

	label := []byte(fmt.Sprintf("storage/%d", m.nodeIndex))
	sig, err := m.provider.Sign(label)
	if err != nil {
		return nil, fmt.Errorf("store: derive AEAD key: %w", err)
	}
	key, err := rng.DeriveKey(sig, aeadKeyInfo, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("store: derive AEAD key: %w", err)
	}
	m.aeadKey = key
	return key, nil
}

func badgerKey(curveTag curve.Tag, namespace, passphrase string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", curveTag, namespace, passphrase))
}

func associatedData(curveTag curve.Tag, namespace, passphrase string) []byte {
	return badgerKey(curveTag, namespace, passphrase)
}

func (m *Manager) passphraseLock(curveTag curve.Tag, passphrase string) *sync.Mutex {
	key := string(curveTag) + ":" + passphrase

	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Manager) seal(curveTag curve.Tag, namespace, passphrase string, plaintext []byte) ([]byte, error) {
	key, err := m.currentAEADKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("store: build AEAD: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("store: generate nonce: %w", err)
	}
	ad := associatedData(curveTag, namespace, passphrase)
	ciphertext := aead.Seal(nil, nonce, plaintext, ad)

	out := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	out = append(out, valueVersion)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

func (m *Manager) unseal(curveTag curve.Tag, namespace, passphrase string, stored []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSize
	if len(stored) < 1+nonceSize {
		return nil, fmt.Errorf("store: stored value too short (%d bytes)", len(stored))
	}
	if stored[0] != valueVersion {
		return nil, fmt.Errorf("store: unsupported value version %d", stored[0])
	}
	nonce := stored[1 : 1+nonceSize]
	ciphertext := stored[1+nonceSize:]

	key, err := m.currentAEADKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("store: build AEAD: %w", err)
	}
	ad := associatedData(curveTag, namespace, passphrase)
	plaintext, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("store: decrypt: %w", err)
	}
	return plaintext, nil
}

// StoreKeyPackage persists kp under (curve, passphrase), overwriting any
// existing package for the same pair. Writes for the same curve+passphrase
// are serialized against each other so a concurrent DKG finalize can't
// race a stale read.
func (m *Manager) StoreKeyPackage(curveTag curve.Tag, passphrase string, kp *KeyPackage) error {
	lock := m.passphraseLock(curveTag, passphrase)
	lock.Lock()
	defer lock.Unlock()

	plaintext, err := json.Marshal(kp)
	if err != nil {
		return fmt.Errorf("store: marshal key package: %w", err)
	}
	sealed, err := m.seal(curveTag, namespaceKeyPackage, passphrase, plaintext)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(curveTag, namespaceKeyPackage, passphrase), sealed)
	})
}

// GetKeyPackage returns (nil, nil) if no key package exists for the pair.
func (m *Manager) GetKeyPackage(curveTag curve.Tag, passphrase string) (*KeyPackage, error) {
	var sealed []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(curveTag, namespaceKeyPackage, passphrase))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: read key package: %w", err)
	}
	if sealed == nil {
		return nil, nil
	}
	plaintext, err := m.unseal(curveTag, namespaceKeyPackage, passphrase, sealed)
	if err != nil {
		return nil, err
	}
	var kp KeyPackage
	if err := json.Unmarshal(plaintext, &kp); err != nil {
		return nil, fmt.Errorf("store: unmarshal key package: %w", err)
	}
	return &kp, nil
}

// StorePublicKeyPackage persists pkp under (curve, passphrase).
func (m *Manager) StorePublicKeyPackage(curveTag curve.Tag, passphrase string, pkp *PublicKeyPackage) error {
	lock := m.passphraseLock(curveTag, passphrase)
	lock.Lock()
	defer lock.Unlock()

	plaintext, err := json.Marshal(pkp)
	if err != nil {
		return fmt.Errorf("store: marshal public key package: %w", err)
	}
	sealed, err := m.seal(curveTag, namespacePubKeyPackage, passphrase, plaintext)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(curveTag, namespacePubKeyPackage, passphrase), sealed)
	})
}

// GetPublicKeyPackage returns (nil, nil) if no public key package exists.
func (m *Manager) GetPublicKeyPackage(curveTag curve.Tag, passphrase string) (*PublicKeyPackage, error) {
	var sealed []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(curveTag, namespacePubKeyPackage, passphrase))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: read public key package: %w", err)
	}
	if sealed == nil {
		return nil, nil
	}
	plaintext, err := m.unseal(curveTag, namespacePubKeyPackage, passphrase, sealed)
	if err != nil {
		return nil, err
	}
	var pkp PublicKeyPackage
	if err := json.Unmarshal(plaintext, &pkp); err != nil {
		return nil, fmt.Errorf("store: unmarshal public key package: %w", err)
	}
	return &pkp, nil
}

// HasPassphrase reports whether a key package already exists for
// (curve, passphrase), without decrypting it.
func (m *Manager) HasPassphrase(curveTag curve.Tag, passphrase string) (bool, error) {
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(curveTag, namespaceKeyPackage, passphrase))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: check passphrase: %w", err)
	}
	return found, nil
}
