package action

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/rpggio/gigboard/internal/ledger"
)

// InFlightKey identifies a write for duplicate detection.
type InFlightKey struct {
	Account ledger.Account
	Kind    Kind
	Target  string
}

// String returns a string representation of the key
func (k InFlightKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Account.Key(), k.Kind, k.Target)
}

// PayloadHash derives a stable target for writes that have no record ID yet.
func PayloadHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}

// inFlightSet tracks writes that have not reached a terminal state.
type inFlightSet struct {
	mu      sync.Mutex
	entries map[string]string
}

func newInFlightSet() *inFlightSet {
	return &inFlightSet{entries: make(map[string]string)}
}

// acquire reserves key for actionID. It returns the holder's action ID when
// the key is already reserved.
func (s *inFlightSet) acquire(key InFlightKey, actionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if holder, exists := s.entries[k]; exists {
		return holder, false
	}
	s.entries[k] = actionID
	return "", true
}

func (s *inFlightSet) release(key InFlightKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.String())
}

func (s *inFlightSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
