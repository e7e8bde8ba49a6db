// Idempotency and replay-guard utilities shared across the node and both
// aggregators.

package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// IdempotencyChecker deduplicates requests by an opaque key within a TTL
// window.
type IdempotencyChecker struct {
	mu      sync.RWMutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
}

// NewIdempotencyChecker starts a checker along with its background eviction
// loop.
func NewIdempotencyChecker(ttl time.Duration, maxSize int) *IdempotencyChecker {
	ic := &IdempotencyChecker{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}

	go ic.cleanupLoop()

	return ic
}

// Check marks key as seen, returning true the first time and false on any
// repeat within the TTL window.
func (ic *IdempotencyChecker) Check(key string) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if _, exists := ic.seen[key]; exists {
		return false
	}

	if len(ic.seen) >= ic.maxSize {
		ic.evictOldest()
	}

	ic.seen[key] = time.Now()
	return true
}

// CheckWithHash is Check keyed by the SHA-256 of data.
func (ic *IdempotencyChecker) CheckWithHash(data []byte) bool {
	hash := sha256.Sum256(data)
	key := hex.EncodeToString(hash[:])
	return ic.Check(key)
}

func (ic *IdempotencyChecker) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for k, t := range ic.seen {
		if oldestKey == "" || t.Before(oldestTime) {
			oldestKey = k
			oldestTime = t
		}
	}

	if oldestKey != "" {
		delete(ic.seen, oldestKey)
	}
}

func (ic *IdempotencyChecker) cleanupLoop() {
	ticker := time.NewTicker(ic.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		ic.cleanup()
	}
}

func (ic *IdempotencyChecker) cleanup() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	now := time.Now()
	for k, t := range ic.seen {
		if now.Sub(t) > ic.ttl {
			delete(ic.seen, k)
		}
	}
}

// GenerateJobID generates a unique signing job ID.
func GenerateJobID(chain string, vaultID uint32, epoch uint64, seq uint64) string {
	h := sha256.New()
	h.Write([]byte("frost_job"))
	h.Write([]byte(chain))
	h.Write([]byte(fmt.Sprintf("%d", vaultID)))
	h.Write([]byte(fmt.Sprintf("%d", epoch)))
	h.Write([]byte(fmt.Sprintf("%d", seq)))
	h.Write([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// GenerateWithdrawID generates a unique withdrawal request ID.
func GenerateWithdrawID(chain string, asset string, seq uint64, height uint64) string {
	h := sha256.New()
	h.Write([]byte("frost_withdraw"))
	h.Write([]byte(chain))
	h.Write([]byte(asset))
	h.Write([]byte(fmt.Sprintf("%d", seq)))
	h.Write([]byte(fmt.Sprintf("%d", height)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Size returns the number of currently tracked entries.
func (ic *IdempotencyChecker) Size() int {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return len(ic.seen)
}

// SeqReplayGuard rejects messages whose (sender, seq) has already been
// seen, tracking each sender's highest accepted seq.
type SeqReplayGuard struct {
	mu      sync.RWMutex
	maxSeqs map[string]uint64 // sender -> max seen seq
	window  uint64            // max allowed seq jump, 0 = unlimited
}

// NewSeqReplayGuard creates a guard. window bounds how far a seq may jump
// ahead of the last seen value (0 disables the bound).
func NewSeqReplayGuard(window uint64) *SeqReplayGuard {
	return &SeqReplayGuard{
		maxSeqs: make(map[string]uint64),
		window:  window,
	}
}

// Check validates seq for sender: valid=true advances maxSeen;
// valid=false,isReplay=true means seq <= maxSeen (a replay);
// valid=false,isReplay=false means seq jumped further than window allows.
func (g *SeqReplayGuard) Check(sender string, seq uint64) (valid bool, isReplay bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	maxSeen := g.maxSeqs[sender]

	if seq <= maxSeen && maxSeen > 0 {
		return false, true
	}

	if g.window > 0 && seq > maxSeen+g.window {
		return false, false
	}

	g.maxSeqs[sender] = seq
	return true, false
}

// GetMaxSeq returns the highest seq accepted so far for sender.
func (g *SeqReplayGuard) GetMaxSeq(sender string) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.maxSeqs[sender]
}

// Reset clears a single sender's tracked seq.
func (g *SeqReplayGuard) Reset(sender string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.maxSeqs, sender)
}

// ResetAll clears every sender's tracked seq.
func (g *SeqReplayGuard) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxSeqs = make(map[string]uint64)
}
