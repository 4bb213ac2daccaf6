package safety

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const tokenTTL = 5 * time.Minute

// pendingConfirmation holds the metadata for an outstanding confirmation token.
type pendingConfirmation struct {
	tool     string
	vmName   string
	issuedAt time.Time
}

// ConfirmationTracker manages single-use, time-limited confirmation tokens
// for destructive tool invocations (power-cycling or lock cleanup on a VM).
// A destructive tool called without a valid token returns a prompt carrying a
// fresh token; the operator repeats the call with that token to proceed.
type ConfirmationTracker struct {
	destructive map[string]struct{}

	mu     sync.Mutex
	tokens map[string]pendingConfirmation
}

// NewConfirmationTracker returns a ConfirmationTracker whose set of tools
// requiring explicit confirmation is defined by destructiveTools. A nil or
// empty slice means no tools require confirmation.
func NewConfirmationTracker(destructiveTools []string) *ConfirmationTracker {
	ct := &ConfirmationTracker{
		destructive: make(map[string]struct{}, len(destructiveTools)),
		tokens:      make(map[string]pendingConfirmation),
	}
	for _, tool := range destructiveTools {
		ct.destructive[tool] = struct{}{}
	}
	return ct
}

// NeedsConfirmation reports whether tool is in the destructive-tools set.
func (ct *ConfirmationTracker) NeedsConfirmation(tool string) bool {
	_, ok := ct.destructive[tool]
	return ok
}

// RequestConfirmation creates a new confirmation token for the given tool and
// VM and returns the opaque token string. Tokens are valid for 5 minutes and
// are single-use.
func (ct *ConfirmationTracker) RequestConfirmation(tool, vmName string) string {
	token := generateToken()

	ct.mu.Lock()
	ct.sweepExpired()
	ct.tokens[token] = pendingConfirmation{
		tool:     tool,
		vmName:   vmName,
		issuedAt: time.Now(),
	}
	ct.mu.Unlock()

	return token
}

// Confirm consumes the given token and returns true if it was valid and
// unexpired. Subsequent calls with the same token return false.
func (ct *ConfirmationTracker) Confirm(token string) bool {
	if token == "" {
		return false
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	pending, ok := ct.tokens[token]
	if !ok {
		return false
	}

	// Single-use: drop the token regardless of expiry.
	delete(ct.tokens, token)

	return time.Since(pending.issuedAt) <= tokenTTL
}

// sweepExpired removes all tokens older than tokenTTL. Caller holds ct.mu.
func (ct *ConfirmationTracker) sweepExpired() {
	for token, pending := range ct.tokens {
		if time.Since(pending.issuedAt) > tokenTTL {
			delete(ct.tokens, token)
		}
	}
}

// generateToken returns a cryptographically random hex-encoded token string.
func generateToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; a timestamp
		// fallback keeps the server limping rather than panicking.
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b[:])
}
