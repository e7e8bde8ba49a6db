package node

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/core/dkg"
	"frostcustody/frost/security"
	"frostcustody/rng"
	"frostcustody/store"
)

// idPackage is the wire shape shared by every DKG round's participant-
// addressed payload: an opaque hex blob keyed by participant id.
type idPackage struct {
	ID  int    `json:"id"`
	Pkg string `json:"pkg"`
}

// isFullRoster reports whether packages carries exactly one entry per
// participant id in [1..n], with no duplicate or out-of-range id. A
// same-length slice with a duplicated id (and a missing one) must still
// fail this check, since it would otherwise silently overwrite
// dealerCommitments for the missing id instead of erroring.
func isFullRoster(packages []idPackage, n int) bool {
	if len(packages) != n {
		return false
	}
	seen := make(map[int]struct{}, n)
	for _, p := range packages {
		if p.ID < 1 || p.ID > n {
			return false
		}
		if _, dup := seen[p.ID]; dup {
			return false
		}
		seen[p.ID] = struct{}{}
	}
	return len(seen) == n
}

// dkgRunState is the per-(curve,passphrase) bookkeeping a node keeps in
// memory between its round2 and finalize calls: every dealer's Feldman-VSS
// commitments, learned from round2's input, which finalize needs again to
// verify shares and recompute the group key. Unlike signing's nonce_handle,
// this lives server-side rather than round-tripped through the caller,
// since the DKG surface's wire contract carries no handle field — losing it
// to a restart simply means the in-flight DKG must restart from round1.
type dkgRunState struct {
	threshold         int
	dealerCommitments map[int][][]byte // participant id -> round1 commitment points
}

type dkgRuns struct {
	mu    sync.Mutex
	runs  map[string]*dkgRunState
}

func (n *Node) dkgRunKey(curveTag curve.Tag, passphrase string) string {
	return string(curveTag) + ":" + passphrase
}

func (n *Node) getDKGRun(curveTag curve.Tag, passphrase string) *dkgRunState {
	n.dkg.mu.Lock()
	defer n.dkg.mu.Unlock()
	return n.dkg.runs[n.dkgRunKey(curveTag, passphrase)]
}

func (n *Node) putDKGRun(curveTag curve.Tag, passphrase string, run *dkgRunState) {
	n.dkg.mu.Lock()
	defer n.dkg.mu.Unlock()
	n.dkg.runs[n.dkgRunKey(curveTag, passphrase)] = run
}

// participantID maps a node's 0-based config index to the 1-based
// participant id the DKG/Lagrange math in frost/core/dkg uses throughout.
func (n *Node) participantID() int { return n.cfg.NodeIndex + 1 }

// dkgReader returns the deterministic randomness source for this node's
// round-1 polynomial over (curveTag, passphrase): the same HSM signature
// and context always reproduce the identical polynomial, letting round2
// and finalize re-derive it instead of holding it across calls.
func (n *Node) dkgReader(curveTag curve.Tag, passphrase string) (io.Reader, error) {
	label := []byte(fmt.Sprintf("dkg-poly/%d/%s/%s", n.cfg.NodeIndex, curveTag, passphrase))
	sig, err := n.provider.Sign(label)
	if err != nil {
		return nil, fmt.Errorf("node: sign dkg-poly label: %w", err)
	}
	seed := rng.Seed(sig, rng.PurposeDKGPolynomial, []byte(curveTag), []byte(passphrase))
	return rng.Reader(seed), nil
}

type dkgRound1Request struct {
	Passphrase string `json:"passphrase"`
}

type dkgRound1Response struct {
	Round1Package string `json:"round1_package"`
}

func (n *Node) handleDKGRound1(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req dkgRound1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, errMissingPassphrase)
		return
	}

	grp, err := n.curveGroup(curveTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reader, err := n.dkgReader(curveTag, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}

	_, pkg, err := dkg.GenerateRound1(grp, n.participantID(), n.cfg.MinSigners, dkgContext(curveTag, req.Passphrase), reader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	raw, err := json.Marshal(pkg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, dkgRound1Response{Round1Package: hexEncode(raw)})
}

type dkgRound2Request struct {
	Passphrase    string      `json:"passphrase"`
	Round1Packages []idPackage `json:"round1_packages"`
}

type dkgRound2Response struct {
	Round2Packages []idPackage `json:"round2_packages"`
}

func (n *Node) handleDKGRound2(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req dkgRound2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, errMissingPassphrase)
		return
	}
	if !isFullRoster(req.Round1Packages, n.cfg.MaxSigners) {
		writeError(w, http.StatusBadRequest, errIncompleteRoster)
		return
	}

	grp, err := n.curveGroup(curveTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	context := dkgContext(curveTag, req.Passphrase)
	dealerCommitments := make(map[int][][]byte, len(req.Round1Packages))
	receiverIDs := make([]int, 0, len(req.Round1Packages))
	transportPubKeys := make(map[int][]byte, len(req.Round1Packages))

	for _, ip := range req.Round1Packages {
		raw, err := hexDecode(ip.Pkg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var pkg dkg.Round1Package
		if err := json.Unmarshal(raw, &pkg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !dkg.VerifyRound1PoK(grp, &pkg, context) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("node: round1 proof of knowledge from participant %d failed to verify", ip.ID))
			return
		}
		dealerCommitments[ip.ID] = pkg.CommitmentPoints
		receiverIDs = append(receiverIDs, ip.ID)

		if ip.ID == n.participantID() {
			pub, err := n.TransportPubKey()
			if err != nil {
				writeHSMError(w, err)
				return
			}
			transportPubKeys[ip.ID] = pub
			continue
		}
		pub, err := n.peerTransportPubKey(ip.ID - 1)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		transportPubKeys[ip.ID] = pub
	}

	n.putDKGRun(curveTag, req.Passphrase, &dkgRunState{
		threshold:         n.cfg.MinSigners,
		dealerCommitments: dealerCommitments,
	})

	reader, err := n.dkgReader(curveTag, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	poly, _, err := dkg.GenerateRound1(grp, n.participantID(), n.cfg.MinSigners, context, reader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	others := make([]int, 0, len(receiverIDs)-1)
	for _, id := range receiverIDs {
		if id != n.participantID() {
			others = append(others, id)
		}
	}

	shareReader, err := n.dkgReader(curveTag, req.Passphrase+":shares")
	if err != nil {
		writeHSMError(w, err)
		return
	}
	cts, err := dkg.EncryptRound2Shares(grp, poly, others, transportPubKeys, shareReader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := dkgRound2Response{Round2Packages: make([]idPackage, 0, len(cts))}
	for _, id := range others {
		resp.Round2Packages = append(resp.Round2Packages, idPackage{ID: id, Pkg: hexEncode(cts[id])})
	}
	writeJSON(w, http.StatusOK, resp)
}

type dkgFinalizeRequest struct {
	Passphrase     string      `json:"passphrase"`
	Round2Packages []idPackage `json:"round2_packages"`
}

type dkgFinalizeResponse struct {
	GroupPubkey     string `json:"group_pubkey"`
	VerifyingShare  string `json:"verifying_share"`
}

func (n *Node) handleDKGFinalize(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req dkgFinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, errMissingPassphrase)
		return
	}

	run := n.getDKGRun(curveTag, req.Passphrase)
	if run == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("node: no in-flight DKG for this passphrase (round2 must precede finalize)"))
		return
	}

	grp, err := n.curveGroup(curveTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	selfID := n.participantID()

	receivedShares := make([]*big.Int, 0, len(req.Round2Packages)+1)
	for _, ip := range req.Round2Packages {
		ct, err := hexDecode(ip.Pkg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		share, err := dkg.DecryptShare(ct, n.transportPriv)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		commitments, ok := run.dealerCommitments[ip.ID]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("node: finalize references unknown dealer %d", ip.ID))
			return
		}
		if !verifyShareForCurve(grp, curveTag, share, commitments, selfID) {
			writeError(w, http.StatusBadRequest, errVerificationFailed)
			return
		}
		receivedShares = append(receivedShares, share)
	}

	reader, err := n.dkgReader(curveTag, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	poly, _, err := dkg.GenerateRound1(grp, selfID, n.cfg.MinSigners, dkgContext(curveTag, req.Passphrase), reader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	selfShare := poly.Evaluate(big.NewInt(int64(selfID)), grp)
	receivedShares = append(receivedShares, selfShare)

	signingShare := dkg.CombineSigningShare(grp, receivedShares)

	groupPub, err := dkg.CombineGroupPublicKey(grp, run.dealerCommitments)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	verifyingShares := make(map[int][]byte, len(run.dealerCommitments))
	for id := range run.dealerCommitments {
		v, err := dkg.CombineVerifyingShare(grp, run.dealerCommitments, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		verifyingShares[id] = grp.SerializePoint(v)
	}

	groupPubBytes := grp.SerializePoint(groupPub)

	kp := &store.KeyPackage{
		Curve:           curveTag,
		ParticipantID:   selfID,
		MinSigners:      n.cfg.MinSigners,
		MaxSigners:      n.cfg.MaxSigners,
		SigningShare:    signingShare.Bytes(),
		GroupPublicKey:  groupPubBytes,
		VerifyingShares: verifyingShares,
	}
	if err := n.store.StoreKeyPackage(curveTag, req.Passphrase, kp); err != nil {
		writeHSMError(w, err)
		return
	}
	pkp := &store.PublicKeyPackage{
		Curve:           curveTag,
		GroupPublicKey:  groupPubBytes,
		VerifyingShares: verifyingShares,
	}
	if err := n.store.StorePublicKeyPackage(curveTag, req.Passphrase, pkp); err != nil {
		writeHSMError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dkgFinalizeResponse{
		GroupPubkey:    hexEncode(groupPubBytes),
		VerifyingShare: hexEncode(verifyingShares[selfID]),
	})
}

// verifyShareForCurve dispatches Feldman-VSS verification to the
// secp256k1-specific helper for the two secp256k1-based ciphersuites (the
// original verifier this service shipped with) and to the curve-generic
// dkg.VerifyShare for Ed25519, which that helper cannot handle.
func verifyShareForCurve(grp curve.Group, curveTag curve.Tag, share *big.Int, commitments [][]byte, receiverIndex int) bool {
	switch curveTag {
	case curve.TagSchnorrSecp256k1, curve.TagECDSASecp256k1:
		return security.VerifyShareAgainstCommitment(share.Bytes(), commitments, big.NewInt(int64(receiverIndex)))
	default:
		return dkg.VerifyShare(grp, share, commitments, receiverIndex)
	}
}
