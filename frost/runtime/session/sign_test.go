package session

import "testing"

func newTestSignSession(quorum []int) *SignSession {
	return NewSignSession(SignSessionParams{
		Passphrase: "vault-1",
		Curve:      "schnorr-secp256k1",
		Message:    []byte("withdraw tx digest"),
		Quorum:     quorum,
	})
}

func TestSignSession_CommitmentBarrier(t *testing.T) {
	s := newTestSignSession([]int{0, 1, 2})
	if s.HasAllCommitments() {
		t.Fatal("barrier should not be satisfied before any commitment arrives")
	}
	_ = s.AddCommitment(0, []byte{0xD0})
	_ = s.AddCommitment(1, []byte{0xD1})
	if s.HasAllCommitments() {
		t.Fatal("barrier should not be satisfied with 2/3 commitments")
	}
	if err := s.AddCommitment(0, []byte{0xD0}); err != ErrSignDuplicateEntry {
		t.Errorf("expected ErrSignDuplicateEntry, got %v", err)
	}
	_ = s.AddCommitment(2, []byte{0xD2})
	if !s.HasAllCommitments() {
		t.Fatal("barrier should be satisfied with 3/3 commitments")
	}
	if err := s.TransitionToCommitted(); err != nil {
		t.Fatalf("TransitionToCommitted: %v", err)
	}
	if s.GetState() != SignSessionStateCommitted {
		t.Errorf("state = %v, want COMMITTED", s.GetState())
	}
}

func TestSignSession_CommitmentsOrderedByID(t *testing.T) {
	s := newTestSignSession([]int{0, 1, 2})
	_ = s.AddCommitment(2, []byte{2})
	_ = s.AddCommitment(0, []byte{0})
	_ = s.AddCommitment(1, []byte{1})
	ordered := s.CommitmentsOrdered()
	for i, c := range ordered {
		if c.ID != i {
			t.Errorf("ordered[%d].ID = %d, want %d", i, c.ID, i)
		}
	}
}

func TestSignSession_ShareCollectionAndAggregate(t *testing.T) {
	s := newTestSignSession([]int{0, 1, 2})
	for _, id := range []int{0, 1, 2} {
		_ = s.AddCommitment(id, []byte{byte(id)})
	}
	_ = s.TransitionToCommitted()

	_ = s.AddShare(0, []byte("z0"))
	_ = s.AddShare(1, []byte("z1"))
	if s.HasEnoughShares() {
		t.Fatal("should not have enough shares with 2/3 collected")
	}
	if err := s.AddShare(0, []byte("z0-again")); err != ErrSignDuplicateEntry {
		t.Errorf("expected ErrSignDuplicateEntry, got %v", err)
	}
	_ = s.AddShare(2, []byte("z2"))
	if !s.HasEnoughShares() {
		t.Fatal("should have enough shares with 3/3 collected")
	}

	shares := s.Shares()
	if len(shares) != 3 || string(shares[1]) != "z1" {
		t.Errorf("Shares() = %v", shares)
	}

	if err := s.TransitionToSigned([]byte("sig")); err != nil {
		t.Fatalf("TransitionToSigned: %v", err)
	}
	if s.GetState() != SignSessionStateSigned {
		t.Errorf("state = %v, want SIGNED", s.GetState())
	}
}

func TestSignSession_RetrySwapsParticipant(t *testing.T) {
	s := newTestSignSession([]int{0, 1, 2})
	_ = s.AddCommitment(0, []byte{0})
	_ = s.AddCommitment(1, []byte{1})
	_ = s.AddCommitment(2, []byte{2})

	s.DropParticipant(2) // node 2 failed round1
	if s.HasAllCommitments() {
		t.Fatal("dropping a participant should reopen the barrier")
	}
	s.SubstituteParticipant(3) // alternate healthy node
	if s.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", s.RetryCount)
	}
	_ = s.AddCommitment(3, []byte{3})
	if !s.HasAllCommitments() {
		t.Fatal("barrier should be satisfied after the substitute answers")
	}
}

func TestSignSession_TooFewSharesFailsAggregation(t *testing.T) {
	s := newTestSignSession([]int{0, 1})
	_ = s.AddCommitment(0, []byte{0})
	_ = s.AddCommitment(1, []byte{1})
	_ = s.TransitionToCommitted()
	_ = s.AddShare(0, []byte("z0"))

	if err := s.TransitionToSigned([]byte("sig")); err != ErrSignTooFewShares {
		t.Errorf("expected ErrSignTooFewShares, got %v", err)
	}
}
