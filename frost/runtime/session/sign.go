package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrSignInvalidState   = errors.New("invalid signing session state")
	ErrSignSessionClosed  = errors.New("signing session closed")
	ErrSignDuplicateEntry = errors.New("duplicate entry for participant")
	ErrSignTooFewShares   = errors.New("too few signature shares")
)

// SignSessionParams creates a SignSession for one (curve, passphrase,
// message) signing request over an M-node quorum.
type SignSessionParams struct {
	Passphrase string
	Curve      string
	Message    []byte
	Quorum     []int // node indices selected as the M-node signing quorum
}

type signerCommitment struct {
	ID      int
	Payload []byte // hex/base64-opaque (D, E) commitment pair as the node returned it
}

// SignSession tracks one (passphrase, message) signing round across its
// M-node quorum: the commitments collected from round1 and the shares
// collected from round2, mirroring the node-visible Idle -> Committed ->
// Signed state machine at the aggregator so concurrent round2 calls can be
// fanned out and joined.
type SignSession struct {
	mu sync.RWMutex

	Passphrase string
	Curve      string
	Message    []byte
	Quorum     []int

	State       SignSessionState
	StartedAt   time.Time
	CompletedAt time.Time
	RetryCount  int // alternate-node substitutions made so far; no cap is enforced by the session itself
	closed      bool

	commitments map[int]signerCommitment
	shares      map[int][]byte // participant id -> signature_share

	Signature []byte
}

func NewSignSession(params SignSessionParams) *SignSession {
	quorum := make([]int, len(params.Quorum))
	copy(quorum, params.Quorum)
	return &SignSession{
		Passphrase:  params.Passphrase,
		Curve:       params.Curve,
		Message:     params.Message,
		Quorum:      quorum,
		State:       SignSessionStateIdle,
		StartedAt:   time.Now(),
		commitments: make(map[int]signerCommitment, len(quorum)),
		shares:      make(map[int][]byte, len(quorum)),
	}
}

// AddCommitment records one quorum member's round1 commitments.
func (s *SignSession) AddCommitment(id int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSignSessionClosed
	}
	if s.State != SignSessionStateIdle {
		return ErrSignInvalidState
	}
	if _, exists := s.commitments[id]; exists {
		return ErrSignDuplicateEntry
	}
	s.commitments[id] = signerCommitment{ID: id, Payload: payload}
	return nil
}

// HasAllCommitments reports whether every quorum member answered round1.
func (s *SignSession) HasAllCommitments() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.commitments) == len(s.Quorum)
}

// CommitmentsOrdered returns every collected commitment sorted by
// participant id, ready to broadcast as round2's all_commitments.
func (s *SignSession) CommitmentsOrdered() []IDPackage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]IDPackage, 0, len(s.commitments))
	for id, c := range s.commitments {
		out = append(out, IDPackage{ID: id, Payload: c.Payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TransitionToCommitted closes round1 collection once every quorum member
// has responded.
func (s *SignSession) TransitionToCommitted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSignSessionClosed
	}
	if s.State != SignSessionStateIdle {
		return ErrSignInvalidState
	}
	if len(s.commitments) != len(s.Quorum) {
		return errors.New("not all commitments collected")
	}
	s.State = SignSessionStateCommitted
	return nil
}

// AddShare records one quorum member's round2 signature share.
func (s *SignSession) AddShare(id int, share []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSignSessionClosed
	}
	if s.State != SignSessionStateCommitted {
		return ErrSignInvalidState
	}
	if _, exists := s.shares[id]; exists {
		return ErrSignDuplicateEntry
	}
	s.shares[id] = share
	return nil
}

// Shares returns a snapshot of every collected share, keyed by participant
// id, for AggregateSignatureShares.
func (s *SignSession) Shares() map[int][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]byte, len(s.shares))
	for id, sh := range s.shares {
		out[id] = sh
	}
	return out
}

// HasEnoughShares reports whether enough shares arrived to aggregate —
// full quorum, not just a threshold count, since every quorum member
// that answered round1 is expected to answer round2.
func (s *SignSession) HasEnoughShares() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shares) == len(s.Quorum)
}

// droppedSlot marks a quorum position vacated by DropParticipant until
// SubstituteParticipant fills it.
const droppedSlot = -1

// DropParticipant removes a non-responsive or invalid quorum member ahead
// of a one-alternate retry, so its commitment/share slot can be re-filled
// by the replacement node. The slot stays in the quorum, so the barriers
// stay open until the replacement answers.
func (s *SignSession) DropParticipant(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commitments, id)
	delete(s.shares, id)
	for i, q := range s.Quorum {
		if q == id {
			s.Quorum[i] = droppedSlot
			break
		}
	}
}

// SubstituteParticipant puts a replacement node into the slot that
// DropParticipant vacated (or appends it if none is vacant) and increments
// RetryCount.
func (s *SignSession) SubstituteParticipant(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RetryCount++
	for i, q := range s.Quorum {
		if q == droppedSlot {
			s.Quorum[i] = id
			return
		}
	}
	s.Quorum = append(s.Quorum, id)
}

// TransitionToSigned records the aggregated, verified signature.
func (s *SignSession) TransitionToSigned(sig []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSignSessionClosed
	}
	if s.State != SignSessionStateCommitted {
		return ErrSignInvalidState
	}
	if len(s.shares) < 2 {
		return ErrSignTooFewShares
	}
	s.Signature = sig
	s.State = SignSessionStateSigned
	s.CompletedAt = time.Now()
	return nil
}

func (s *SignSession) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = SignSessionStateFailed
	s.CompletedAt = time.Now()
}

func (s *SignSession) GetState() SignSessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

func (s *SignSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *SignSession) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
