// Package credential resolves secret references from configuration.
//
// A reference is one of:
//
//	keyring:<key>  looked up in the OS keyring under the inbox-triage service
//	env:<NAME>     read from the process environment
//	anything else  used verbatim
package credential

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const serviceName = "inbox-triage"

// Resolver turns credential references into secret values. The keyring is
// opened lazily, so configurations with only literal or env references never
// touch it.
type Resolver struct {
	open func() (keyring.Keyring, error)

	once sync.Once
	ring keyring.Keyring
	err  error
}

// NewResolver returns a Resolver backed by the system keyring.
func NewResolver() *Resolver {
	return &Resolver{open: openKeyring}
}

// NewResolverWithKeyring returns a Resolver using ring, mostly for tests.
func NewResolverWithKeyring(ring keyring.Keyring) *Resolver {
	return &Resolver{open: func() (keyring.Keyring, error) { return ring, nil }}
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/inbox-triage/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("inbox-triage-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (r *Resolver) keyring() (keyring.Keyring, error) {
	r.once.Do(func() {
		r.ring, r.err = r.open()
	})
	return r.ring, r.err
}

// Resolve returns the secret behind ref. An empty ref resolves to "".
func (r *Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", nil
	case strings.HasPrefix(ref, "keyring:"):
		key := strings.TrimPrefix(ref, "keyring:")
		ring, err := r.keyring()
		if err != nil {
			return "", err
		}
		item, err := ring.Get(key)
		if err != nil {
			return "", fmt.Errorf("getting credential %q: %w", key, err)
		}
		return string(item.Data), nil
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return value, nil
	default:
		return ref, nil
	}
}

// Store saves value in the keyring under key.
func (r *Resolver) Store(key, value string) error {
	ring, err := r.keyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}
