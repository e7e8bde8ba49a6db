package node

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/core/dkg"
	ecdsamath "frostcustody/frost/core/ecdsa"
	"frostcustody/frost/core/frost"
)

func frostVerifyECDSA(pubkey, msg, sig []byte) (bool, error) {
	return frost.VerifyECDSASecp256k1(pubkey, msg, sig)
}

// Threshold ECDSA has no single "round2" shape the way Schnorr-family FROST
// does: recovering s = k^-1*(H(m) + r*x) without any party learning k
// requires a pairwise multiplicative-to-answer-additive (MtA) exchange
// between every ordered pair of signers, run twice (once against each
// signer's masking share for r, once against its key share for s), before
// a last local combine step. The aggregator drives all of this by calling
// this same round2 endpoint repeatedly with a phase discriminator, feeding
// each response's ecdsa_handle back into the next call — the node itself
// never holds a cross-call map of in-flight exchanges, just the handle.

type pointWire struct {
	X string `json:"x"`
	Y string `json:"y"`
}

func toPointWire(p curve.Point) pointWire {
	return pointWire{X: p.X.Text(16), Y: p.Y.Text(16)}
}

func fromPointWire(w pointWire) (curve.Point, error) {
	x, ok := new(big.Int).SetString(w.X, 16)
	y, ok2 := new(big.Int).SetString(w.Y, 16)
	if !ok || !ok2 {
		return curve.Point{}, fmt.Errorf("node: malformed point")
	}
	return curve.Point{X: x, Y: y}, nil
}

type ecdsaRound1Response struct {
	GammaPoint  pointWire `json:"gamma_point"`
	CtKappa     string    `json:"ct_kappa"`
	CtGamma     string    `json:"ct_gamma"`
	PaillierN   string    `json:"paillier_n"`
	ECDSAHandle string    `json:"ecdsa_handle"`
}

func (n *Node) handleECDSARound1(w http.ResponseWriter, r *http.Request, req signRound1Request) {
	message, err := hexDecode(req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	grp, err := n.curveGroup(curve.TagECDSASecp256k1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kp, err := n.store.GetKeyPackage(curve.TagECDSASecp256k1, req.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if kp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}
	pail, err := n.paillierPrivateKey()
	if err != nil {
		writeHSMError(w, err)
		return
	}

	secrets, pub1, err := ecdsamath.GenerateNonceRound1(grp, &pail.PaillierPublicKey, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	payload := &ECDSAHandlePayload{
		Curve:         string(curve.TagECDSASecp256k1),
		Passphrase:    req.Passphrase,
		MessageHash:   messageHash(message),
		ParticipantID: kp.ParticipantID,
		QuorumIDs:     req.QuorumIDs,
		CreatedAtUnix: time.Now().Unix(),
		Kappa:         secrets.Kappa.Bytes(),
		Gamma:         secrets.Gamma.Bytes(),
	}
	handle, err := n.sealer.seal("ecdsa_handle", payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, ecdsaRound1Response{
		GammaPoint:  toPointWire(pub1.GammaPoint),
		CtKappa:     pub1.CtKappa.Text(16),
		CtGamma:     pub1.CtGamma.Text(16),
		PaillierN:   pail.N.Text(16),
		ECDSAHandle: handle,
	})
}

type ecdsaRound2Request struct {
	Passphrase      string `json:"passphrase"`
	Phase           string `json:"phase"` // mta_bob | mta_alice_finish | combine | finalize
	ECDSAHandle     string `json:"ecdsa_handle"`
	Target          string `json:"target,omitempty"` // delta | sigma
	AlicePaillierN  string `json:"alice_paillier_n,omitempty"`
	AliceCiphertext string `json:"alice_ciphertext,omitempty"`
	BobResponse     string `json:"bob_response,omitempty"`
	Delta           string `json:"delta,omitempty"` // hex, public, for finalize
	Rx              string `json:"rx,omitempty"`     // hex, public nonce commitment x, for finalize
}

func hexToInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("node: missing hex scalar")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("node: malformed hex scalar %q", s)
	}
	return v, nil
}

func (n *Node) unsealECDSAHandle(handle string) (*ECDSAHandlePayload, error) {
	var payload ECDSAHandlePayload
	if err := n.sealer.unseal("ecdsa_handle", handle, &payload); err != nil {
		return nil, err
	}
	if payload.expired(n.cfg.Timeouts.NonceHandleTTL) {
		return nil, errHandleExpired
	}
	return &payload, nil
}

func (n *Node) resealECDSAHandle(w http.ResponseWriter, payload *ECDSAHandlePayload, extra map[string]any) {
	handle, err := n.sealer.seal("ecdsa_handle", payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	body := map[string]any{"ecdsa_handle": handle}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (n *Node) handleECDSARound2(w http.ResponseWriter, raw json.RawMessage) {
	var req ecdsaRound2Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload, err := n.unsealECDSAHandle(req.ECDSAHandle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	grp, err := n.curveGroup(curve.TagECDSASecp256k1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fieldOrder := grp.Order()

	switch req.Phase {
	case "mta_bob":
		n.ecdsaMtABob(w, req, payload, grp, fieldOrder)
	case "mta_alice_finish":
		n.ecdsaMtAAliceFinish(w, req, payload, fieldOrder)
	case "combine":
		n.ecdsaCombine(w, payload, fieldOrder)
	case "finalize":
		n.ecdsaFinalize(w, req, payload, fieldOrder)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("node: unknown ecdsa round2 phase %q", req.Phase))
	}
}

// ecdsaMtABob runs this node as Bob against an Alice-side participant's
// published Paillier ciphertext, using this node's own gamma (delta target)
// or lambda-weighted key share (sigma target) as its factor b, and folds
// its resulting additive share beta directly into the handle.
func (n *Node) ecdsaMtABob(w http.ResponseWriter, req ecdsaRound2Request, payload *ECDSAHandlePayload, grp curve.Group, fieldOrder *big.Int) {
	aliceN, err := hexToInt(req.AlicePaillierN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctA, err := hexToInt(req.AliceCiphertext)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pubAlice := &ecdsamath.PaillierPublicKey{N: aliceN, N2: new(big.Int).Mul(aliceN, aliceN)}

	kp, err := n.store.GetKeyPackage(curve.TagECDSASecp256k1, payload.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if kp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}

	var b *big.Int
	switch req.Target {
	case "delta":
		b = new(big.Int).SetBytes(payload.Gamma)
	case "sigma":
		lambda := lagrangeFor(payload.QuorumIDs, kp.ParticipantID, fieldOrder)
		if lambda == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("node: participant not present in quorum_ids"))
			return
		}
		share := new(big.Int).SetBytes(kp.SigningShare)
		b = ecdsamath.LocalProduct(lambda, share, fieldOrder)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("node: unknown mta target %q", req.Target))
		return
	}

	response, beta, err := ecdsamath.MtARespond(pubAlice, ctA, b, fieldOrder, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.Target == "delta" {
		payload.DeltaBetas = append(payload.DeltaBetas, beta.Bytes())
	} else {
		payload.SigmaBetas = append(payload.SigmaBetas, beta.Bytes())
	}

	n.resealECDSAHandle(w, payload, map[string]any{"response": response.Text(16)})
}

// ecdsaMtAAliceFinish decrypts a counterparty's MtA response and folds the
// resulting alpha share into the handle.
func (n *Node) ecdsaMtAAliceFinish(w http.ResponseWriter, req ecdsaRound2Request, payload *ECDSAHandlePayload, fieldOrder *big.Int) {
	response, err := hexToInt(req.BobResponse)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pail, err := n.paillierPrivateKey()
	if err != nil {
		writeHSMError(w, err)
		return
	}
	alpha, err := ecdsamath.MtAFinish(pail, response, fieldOrder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.Target == "delta" {
		payload.DeltaAlphas = append(payload.DeltaAlphas, alpha.Bytes())
	} else {
		payload.SigmaAlphas = append(payload.SigmaAlphas, alpha.Bytes())
	}

	n.resealECDSAHandle(w, payload, nil)
}

// ecdsaCombine folds this node's own diagonal terms together with every
// MtA share collected so far into its additive delta share (revealed
// publicly by the aggregator) and its additive sigma share (kept inside
// the handle — it is this node's share of kappa*x and must never leave the
// process unblinded).
func (n *Node) ecdsaCombine(w http.ResponseWriter, payload *ECDSAHandlePayload, fieldOrder *big.Int) {
	kp, err := n.store.GetKeyPackage(curve.TagECDSASecp256k1, payload.Passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if kp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}
	kappa := new(big.Int).SetBytes(payload.Kappa)
	gamma := new(big.Int).SetBytes(payload.Gamma)
	lambda := lagrangeFor(payload.QuorumIDs, kp.ParticipantID, fieldOrder)
	if lambda == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("node: participant not present in quorum_ids"))
		return
	}
	share := new(big.Int).SetBytes(kp.SigningShare)

	deltaDiag := ecdsamath.LocalProduct(kappa, gamma, fieldOrder)
	sigmaDiag := ecdsamath.LocalProduct(kappa, ecdsamath.LocalProduct(lambda, share, fieldOrder), fieldOrder)

	deltaShare := ecdsamath.CombineShares(deltaDiag, bytesToInts(payload.DeltaAlphas), bytesToInts(payload.DeltaBetas), fieldOrder)
	sigmaShare := ecdsamath.CombineShares(sigmaDiag, bytesToInts(payload.SigmaAlphas), bytesToInts(payload.SigmaBetas), fieldOrder)

	payload.SigmaShare = sigmaShare.Bytes()
	n.resealECDSAHandle(w, payload, map[string]any{"delta_share": deltaShare.Text(16)})
}

// ecdsaFinalize computes this node's share of the ECDSA signature once the
// aggregator has revealed the public delta scalar and the nonce
// commitment's x-coordinate derived from it.
func (n *Node) ecdsaFinalize(w http.ResponseWriter, req ecdsaRound2Request, payload *ECDSAHandlePayload, fieldOrder *big.Int) {
	if _, err := hexToInt(req.Delta); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rx, err := hexToInt(req.Rx)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(payload.SigmaShare) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("node: combine phase has not run for this handle"))
		return
	}
	// R = delta^-1 * sum(Gamma_i) = kappa^-1 * G, so the signature's k^-1 is
	// kappa itself: s_i = kappa_i*H + r*sigma_i.
	kappa := new(big.Int).SetBytes(payload.Kappa)
	sigmaShare := new(big.Int).SetBytes(payload.SigmaShare)
	hash := new(big.Int).SetBytes(payload.MessageHash)
	sigShare := ecdsamath.ComputeSigShare(kappa, sigmaShare, rx, hash, fieldOrder)

	writeJSON(w, http.StatusOK, map[string]any{"sig_share": sigShare.Text(16)})
}

func bytesToInts(bs [][]byte) []*big.Int {
	out := make([]*big.Int, len(bs))
	for i, b := range bs {
		out[i] = new(big.Int).SetBytes(b)
	}
	return out
}

// lagrangeFor returns the Lagrange coefficient for id within quorumIDs, or
// nil if id is not a member.
func lagrangeFor(quorumIDs []int, id int, fieldOrder *big.Int) *big.Int {
	ids := make([]*big.Int, len(quorumIDs))
	idx := -1
	for i, q := range quorumIDs {
		ids[i] = big.NewInt(int64(q))
		if q == id {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	return dkg.ComputeLagrangeCoefficients(ids, fieldOrder)[idx]
}

// handleECDSAAggregate is the wire-contract-complete aggregate endpoint;
// the signing aggregator's primary path runs this same combine-then-verify
// math itself once it already holds every node's delta and signature
// shares, since none of it needs any node's key material.
type ecdsaAggregateRequest struct {
	Passphrase  string      `json:"passphrase"`
	Message     string      `json:"message"`
	GammaPoints []pointWire `json:"gamma_points"`
	DeltaShares []string    `json:"delta_shares"`
	SigShares   []string    `json:"sig_shares"`
	GroupPubkey string      `json:"group_pubkey"` // 33-byte SEC1 compressed, hex
}

func (n *Node) handleECDSAAggregate(w http.ResponseWriter, raw json.RawMessage) {
	var req ecdsaAggregateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	message, err := hexDecode(req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	grp, err := n.curveGroup(curve.TagECDSASecp256k1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fieldOrder := grp.Order()

	var sumGamma curve.Point
	for i, pw := range req.GammaPoints {
		p, err := fromPointWire(pw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if i == 0 {
			sumGamma = p
			continue
		}
		sumGamma = grp.Add(sumGamma, p)
	}

	deltaShares := make([]*big.Int, 0, len(req.DeltaShares))
	for _, s := range req.DeltaShares {
		v, err := hexToInt(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		deltaShares = append(deltaShares, v)
	}
	delta := ecdsamath.CombineDelta(deltaShares, fieldOrder)

	nonceCommitment, err := ecdsamath.ComputeNonceCommitment(grp, sumGamma, delta, fieldOrder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sigShares := make([]*big.Int, 0, len(req.SigShares))
	for _, s := range req.SigShares {
		v, err := hexToInt(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sigShares = append(sigShares, v)
	}
	sig := ecdsamath.CombineSignature(grp, nonceCommitment.X, sigShares, nonceCommitment)

	groupPub, err := hexDecode(req.GroupPubkey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	verified, err := frostVerifyECDSA(groupPub, messageHash(message), sig)
	if err != nil {
		verified = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signature": hexEncode(sig),
		"verified":  verified,
	})
}
