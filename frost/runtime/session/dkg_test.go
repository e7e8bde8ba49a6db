package session

import "testing"

func newTestDKGSession(n int) *DKGSession {
	return NewDKGSession(DKGSessionParams{Passphrase: "vault-1", Curve: "schnorr-secp256k1", N: n})
}

func TestDKGSession_Round1Barrier(t *testing.T) {
	s := newTestDKGSession(3)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.HasAllRound1Packages() {
		t.Fatal("barrier should not be satisfied before any package arrives")
	}
	for i := 1; i <= 2; i++ {
		if err := s.AddRound1Package(i, []byte{byte(i)}); err != nil {
			t.Fatalf("AddRound1Package(%d): %v", i, err)
		}
	}
	if s.HasAllRound1Packages() {
		t.Fatal("barrier should not be satisfied with 2/3 packages")
	}
	if err := s.AddRound1Package(3, []byte{3}); err != nil {
		t.Fatalf("AddRound1Package(3): %v", err)
	}
	if !s.HasAllRound1Packages() {
		t.Fatal("barrier should be satisfied with 3/3 packages")
	}
	if err := s.AddRound1Package(1, []byte{1}); err != ErrDKGDuplicatePackage {
		t.Errorf("expected ErrDKGDuplicatePackage, got %v", err)
	}
	if err := s.TransitionToRound1Received(); err != nil {
		t.Fatalf("TransitionToRound1Received: %v", err)
	}
	if s.GetPhase() != DKGPhaseRound1Received {
		t.Errorf("phase = %v, want ROUND1_RECEIVED", s.GetPhase())
	}
}

func TestDKGSession_IncompleteRosterRejected(t *testing.T) {
	s := newTestDKGSession(3)
	_ = s.Start()
	_ = s.AddRound1Package(1, []byte{1})
	_ = s.AddRound1Package(2, []byte{2})
	// force the transition attempt before the barrier would normally allow it
	s.mu.Lock()
	s.round1Packages[4] = []byte{4} // wrong id, roster should be exactly [1..N]
	s.mu.Unlock()
	if err := s.TransitionToRound1Received(); err != ErrDKGIncompleteRoster {
		t.Errorf("expected ErrDKGIncompleteRoster, got %v", err)
	}
}

func TestDKGSession_Round1PackagesOrdered(t *testing.T) {
	s := newTestDKGSession(3)
	_ = s.Start()
	_ = s.AddRound1Package(3, []byte{3})
	_ = s.AddRound1Package(1, []byte{1})
	_ = s.AddRound1Package(2, []byte{2})

	ordered := s.Round1PackagesOrdered()
	if len(ordered) != 3 {
		t.Fatalf("len = %d, want 3", len(ordered))
	}
	for i, pkg := range ordered {
		if pkg.ID != i+1 {
			t.Errorf("ordered[%d].ID = %d, want %d", i, pkg.ID, i+1)
		}
	}
}

func TestDKGSession_Round2TransposeToPerReceiver(t *testing.T) {
	s := newTestDKGSession(3)
	_ = s.Start()
	for i := 1; i <= 3; i++ {
		_ = s.AddRound1Package(i, []byte{byte(i)})
	}
	_ = s.TransitionToRound1Received()
	_ = s.TransitionToRound2Emitted()

	// dealer 1 -> {2, 3}; dealer 2 -> {1, 3}; dealer 3 -> {1, 2}
	if err := s.AddRound2Packages(1, []int{2, 3}, [][]byte{{0xA2}, {0xA3}}); err != nil {
		t.Fatalf("AddRound2Packages(1): %v", err)
	}
	if err := s.AddRound2Packages(2, []int{1, 3}, [][]byte{{0xB1}, {0xB3}}); err != nil {
		t.Fatalf("AddRound2Packages(2): %v", err)
	}
	if s.HasAllRound2Packages() {
		t.Fatal("barrier should not be satisfied with 2/3 dealers")
	}
	if err := s.AddRound2Packages(3, []int{1, 2}, [][]byte{{0xC1}, {0xC2}}); err != nil {
		t.Fatalf("AddRound2Packages(3): %v", err)
	}
	if !s.HasAllRound2Packages() {
		t.Fatal("barrier should be satisfied with 3/3 dealers")
	}
	if err := s.TransitionToRound2Received(); err != nil {
		t.Fatalf("TransitionToRound2Received: %v", err)
	}

	for1 := s.PackagesForReceiver(1)
	if len(for1) != 2 || for1[0].ID != 2 || for1[1].ID != 3 {
		t.Errorf("PackagesForReceiver(1) = %+v, want dealers [2, 3]", for1)
	}
	if for1[0].Payload[0] != 0xB1 {
		t.Errorf("PackagesForReceiver(1)[0].Payload = %x, want B1", for1[0].Payload)
	}
}

func TestDKGSession_DuplicateDealerRejected(t *testing.T) {
	s := newTestDKGSession(3)
	_ = s.Start()
	for i := 1; i <= 3; i++ {
		_ = s.AddRound1Package(i, []byte{byte(i)})
	}
	_ = s.TransitionToRound1Received()
	_ = s.TransitionToRound2Emitted()

	_ = s.AddRound2Packages(1, []int{2, 3}, [][]byte{{1}, {1}})
	if err := s.AddRound2Packages(1, []int{2, 3}, [][]byte{{2}, {2}}); err != ErrDKGDuplicatePackage {
		t.Errorf("expected ErrDKGDuplicatePackage, got %v", err)
	}
}

func TestDKGSession_FinalizeAndFail(t *testing.T) {
	s := newTestDKGSession(2)
	_ = s.Start()
	_ = s.AddRound1Package(1, []byte{1})
	_ = s.AddRound1Package(2, []byte{2})
	_ = s.TransitionToRound1Received()
	_ = s.TransitionToRound2Emitted()
	_ = s.AddRound2Packages(1, []int{2}, [][]byte{{1}})
	_ = s.AddRound2Packages(2, []int{1}, [][]byte{{2}})
	_ = s.TransitionToRound2Received()

	if err := s.TransitionToFinalized([]byte("pubkey"), map[int][]byte{1: {1}, 2: {2}}); err != nil {
		t.Fatalf("TransitionToFinalized: %v", err)
	}
	if s.GetPhase() != DKGPhaseFinalized {
		t.Errorf("phase = %v, want FINALIZED", s.GetPhase())
	}
	if string(s.GetGroupPubkey()) != "pubkey" {
		t.Errorf("GetGroupPubkey() = %q, want %q", s.GetGroupPubkey(), "pubkey")
	}

	s2 := newTestDKGSession(2)
	s2.MarkFailed()
	if s2.GetPhase() != DKGPhaseFailed {
		t.Errorf("phase = %v, want FAILED", s2.GetPhase())
	}
}

func TestDKGSession_ClosedSessionRejectsWrites(t *testing.T) {
	s := newTestDKGSession(2)
	_ = s.Start()
	s.Close()
	if !s.IsClosed() {
		t.Fatal("IsClosed() should be true after Close()")
	}
	if err := s.AddRound1Package(1, []byte{1}); err != ErrDKGSessionClosed {
		t.Errorf("expected ErrDKGSessionClosed, got %v", err)
	}
}
