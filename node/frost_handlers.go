package node

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/core/dkg"
	"frostcustody/frost/core/frost"
)

// commitmentWire is the hex/JSON wire encoding of frost.SignerCommitment.
type commitmentWire struct {
	ID int    `json:"id"`
	Dx string `json:"dx"`
	Dy string `json:"dy"`
	Ex string `json:"ex"`
	Ey string `json:"ey"`
}

func toCommitmentWire(c frost.SignerCommitment) commitmentWire {
	return commitmentWire{ID: c.ID, Dx: c.Dx.Text(16), Dy: c.Dy.Text(16), Ex: c.Ex.Text(16), Ey: c.Ey.Text(16)}
}

func fromCommitmentWire(w commitmentWire) (frost.SignerCommitment, error) {
	parse := func(s string) (*big.Int, bool) { return new(big.Int).SetString(s, 16) }
	dx, ok := parse(w.Dx)
	dy, ok2 := parse(w.Dy)
	ex, ok3 := parse(w.Ex)
	ey, ok4 := parse(w.Ey)
	if !ok || !ok2 || !ok3 || !ok4 {
		return frost.SignerCommitment{}, fmt.Errorf("node: malformed commitment for participant %d", w.ID)
	}
	return frost.SignerCommitment{ID: w.ID, Dx: dx, Dy: dy, Ex: ex, Ey: ey}, nil
}

func challengeFuncFor(curveTag curve.Tag) frost.ChallengeFunc {
	if curveTag == curve.TagEd25519 {
		return frost.Ed25519Challenge
	}
	return frost.BIP340Challenge
}

func messageHash(message []byte) []byte {
	sum := sha256.Sum256(message)
	return sum[:]
}

// signingMessage returns the byte string every FROST challenge and the
// final signature verification operate over. BIP-340 and ECDSA both sign
// a 32-byte digest, but Ed25519Challenge implements RFC 8032's e =
// SHA-512(R || A || M) directly over the message itself — pre-hashing it
// here would make the aggregated signature unverifiable by any standard
// (non-threshold) Ed25519 verifier, which is the whole point of staying
// wire-compatible. prehashed lets a caller that already holds a digest
// (a Taproot sighash, say) skip the extra SHA-256 pass, since callers of
// e.g. CalcTaprootSignatureHash must sign exactly that digest, not its hash.
func signingMessage(curveTag curve.Tag, message []byte, prehashed bool) []byte {
	if curveTag == curve.TagEd25519 || prehashed {
		return message
	}
	return messageHash(message)
}

type signRound1Request struct {
	Passphrase string `json:"passphrase"`
	Message    string `json:"message"` // hex
	QuorumIDs  []int  `json:"quorum_ids,omitempty"` // ECDSA only: fixes Lagrange weights before the MtA exchange begins
	Prehashed  bool   `json:"prehashed,omitempty"`
}

type signRound1Response struct {
	Commitments commitmentWire `json:"commitments"`
	NonceHandle string         `json:"nonce_handle"`
}

func (n *Node) handleSignRound1(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req signRound1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, errMissingPassphrase)
		return
	}
	message, err := hexDecode(req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if curveTag == curve.TagECDSASecp256k1 {
		n.handleECDSARound1(w, r, req)
		return
	}

	grp, err := n.curveGroup(curveTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	kp, err := n.store.GetKeyPackage(curveTag, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if kp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}

	nonces, commitment, err := frost.GenerateNonces(grp, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	commitment.ID = kp.ParticipantID

	payload := &NonceHandlePayload{
		Curve:         string(curveTag),
		Passphrase:    req.Passphrase,
		MessageHash:   signingMessage(curveTag, message, req.Prehashed),
		ParticipantID: kp.ParticipantID,
		CreatedAtUnix: time.Now().Unix(),
		D:             nonces.D.Bytes(),
		E:             nonces.E.Bytes(),
	}
	handle, err := n.sealer.seal("nonce_handle", payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, signRound1Response{
		Commitments: toCommitmentWire(commitment),
		NonceHandle: handle,
	})
}

type signRound2Request struct {
	Passphrase     string           `json:"passphrase"`
	Message        string           `json:"message"`
	NonceHandle    string           `json:"nonce_handle"`
	AllCommitments []commitmentWire `json:"all_commitments"`
	Prehashed      bool             `json:"prehashed,omitempty"`
}

type signRound2Response struct {
	SignatureShare string `json:"signature_share"`
	ID             int    `json:"id"`
}

func (n *Node) handleSignRound2(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if curveTag == curve.TagECDSASecp256k1 {
		n.handleECDSARound2(w, raw)
		return
	}

	var req signRound2Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	message, err := hexDecode(req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var payload NonceHandlePayload
	if err := n.sealer.unseal("nonce_handle", req.NonceHandle, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.expired(n.cfg.Timeouts.NonceHandleTTL) {
		writeError(w, http.StatusBadRequest, errHandleExpired)
		return
	}
	if !n.sealer.consumeOnce(req.NonceHandle) {
		writeError(w, http.StatusBadRequest, errHandleAlreadyUsed)
		return
	}
	if payload.Curve != string(curveTag) || payload.Passphrase != req.Passphrase {
		writeError(w, http.StatusBadRequest, errMessageMismatch)
		return
	}
	gotHash := signingMessage(curveTag, message, req.Prehashed)
	if len(gotHash) != len(payload.MessageHash) || string(gotHash) != string(payload.MessageHash) {
		writeError(w, http.StatusBadRequest, errMessageMismatch)
		return
	}

	grp, err := n.curveGroup(curveTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kp, err := n.store.GetKeyPackage(curveTag, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if kp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}

	commitments := make([]frost.SignerCommitment, 0, len(req.AllCommitments))
	ids := make([]*big.Int, 0, len(req.AllCommitments))
	for _, cw := range req.AllCommitments {
		c, err := fromCommitmentWire(cw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		commitments = append(commitments, c)
		ids = append(ids, big.NewInt(int64(c.ID)))
	}

	bindingFactors := make(map[int]*big.Int, len(commitments))
	for _, c := range commitments {
		bindingFactors[c.ID] = frost.ComputeBindingCoefficient(c.ID, gotHash, commitments, grp)
	}
	Rx, Ry, err := frost.ComputeGroupCommitment(commitments, bindingFactors, grp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	groupPub := grp.DecompressPoint(kp.GroupPublicKey)
	challenge := challengeFuncFor(curveTag)(Rx, groupPub.X, gotHash, grp)

	lambdas := dkg.ComputeLagrangeCoefficients(ids, grp.Order())
	var lambda *big.Int
	for i, id := range ids {
		if int(id.Int64()) == kp.ParticipantID {
			lambda = lambdas[i]
			break
		}
	}
	if lambda == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("node: this participant is not in all_commitments"))
		return
	}

	nonces := frost.SignerNonces{D: new(big.Int).SetBytes(payload.D), E: new(big.Int).SetBytes(payload.E)}
	share := new(big.Int).SetBytes(kp.SigningShare)
	zi := frost.PartialSign(grp, nonces, bindingFactors[kp.ParticipantID], lambda, challenge, share, Ry)

	writeJSON(w, http.StatusOK, signRound2Response{
		SignatureShare: zi.Text(16),
		ID:             kp.ParticipantID,
	})
}

type signAggregateRequest struct {
	Passphrase      string           `json:"passphrase"`
	Message         string           `json:"message"`
	AllCommitments  []commitmentWire `json:"all_commitments"`
	SignatureShares []idScalar       `json:"signature_shares"`
	Prehashed       bool             `json:"prehashed,omitempty"`
}

type idScalar struct {
	ID    int    `json:"id"`
	Share string `json:"share"`
}

type signAggregateResponse struct {
	Signature string `json:"signature"`
	Verified  bool   `json:"verified"`
}

// handleSignAggregate is the Schnorr/Ed25519 combine-and-verify step the
// signing aggregator (see aggregator/signing) calls against any one node
// in the quorum once it has broadcast commitments and collected every
// quorum member's round2 share — no party needs additional key material
// to run this math, so the aggregator does not duplicate it.
func (n *Node) handleSignAggregate(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if curveTag == curve.TagECDSASecp256k1 {
		n.handleECDSAAggregate(w, raw)
		return
	}

	var req signAggregateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	message, err := hexDecode(req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	grp, err := n.curveGroup(curveTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pkp, err := n.store.GetPublicKeyPackage(curveTag, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if pkp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}

	commitments := make([]frost.SignerCommitment, 0, len(req.AllCommitments))
	for _, cw := range req.AllCommitments {
		c, err := fromCommitmentWire(cw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		commitments = append(commitments, c)
	}
	gotHash := signingMessage(curveTag, message, req.Prehashed)
	bindingFactors := make(map[int]*big.Int, len(commitments))
	for _, c := range commitments {
		bindingFactors[c.ID] = frost.ComputeBindingCoefficient(c.ID, gotHash, commitments, grp)
	}
	Rx, Ry, err := frost.ComputeGroupCommitment(commitments, bindingFactors, grp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	shares := make(map[int]*big.Int, len(req.SignatureShares))
	for _, s := range req.SignatureShares {
		v, ok := new(big.Int).SetString(s.Share, 16)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("node: malformed signature share for participant %d", s.ID))
			return
		}
		shares[s.ID] = v
	}

	sig, err := frost.AggregateSignatureShares(Rx, Ry, shares, grp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	verified, err := frost.Verify(curveTag, wireVerifyPubkey(curveTag, pkp.GroupPublicKey, grp), gotHash, sig)
	if err != nil {
		verified = false
	}

	writeJSON(w, http.StatusOK, signAggregateResponse{Signature: hexEncode(sig), Verified: verified})
}

// wireVerifyPubkey reduces the stored compressed group public key to
// whichever encoding frost.Verify expects for curveTag: BIP-340 wants a
// 32-byte x-only key where ECDSA wants the full 33-byte compressed point.
func wireVerifyPubkey(curveTag curve.Tag, groupPubKey []byte, grp curve.Group) []byte {
	if curveTag == curve.TagSchnorrSecp256k1 {
		p := grp.DecompressPoint(groupPubKey)
		out := make([]byte, 32)
		p.X.FillBytes(out)
		return out
	}
	return groupPubKey
}
