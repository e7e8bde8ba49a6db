// Package signing implements the signing aggregator (§4.9): the stateless
// front door that selects a deterministic quorum of healthy nodes, drives
// FROST/threshold-ECDSA round1 and round2 across them, and returns a
// verified signature — never a partial one.
package signing

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"

	"frostcustody/aggregator/health"
	"frostcustody/aggregator/nodeclient"
	"frostcustody/apierr"
	"frostcustody/config"
	"frostcustody/frost/core/curve"
	ecdsamath "frostcustody/frost/core/ecdsa"
	"frostcustody/frost/runtime/session"
	"frostcustody/logs"
)

// Aggregator is the signing aggregator's server-side state: one client per
// configured node, keyed by node index, plus the health prober used to
// pick the signing quorum fresh on every request.
type Aggregator struct {
	cfg        config.AggregatorConfig
	clients    map[int]*nodeclient.Client
	prober     *health.Prober
	maxRetries int
}

func New(cfg config.AggregatorConfig) *Aggregator {
	clients := make(map[int]*nodeclient.Client, len(cfg.SignerNodes))
	for _, sn := range cfg.SignerNodes {
		clients[sn.Index] = nodeclient.New(sn.Index, sn.BaseURL, cfg.Timeouts.SignRound)
	}
	return &Aggregator{cfg: cfg, clients: clients, prober: health.New(cfg), maxRetries: cfg.Retry.MaxAlternateSelections}
}

type signMessageRequest struct {
	Passphrase string `json:"passphrase"`
	Message    string `json:"message"` // hex
	Curve      string `json:"curve"`
}

type signMessageResponse struct {
	Signature string `json:"signature"`
	Verified  bool   `json:"verified"`
}

// MessageHandler serves POST /api/sign/message.
func (a *Aggregator) MessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.Write(w, apierr.New(apierr.KindInput, "malformed request body"))
			return
		}
		if req.Passphrase == "" || req.Message == "" || req.Curve == "" {
			apierr.Write(w, apierr.New(apierr.KindInput, "passphrase, message, and curve are required"))
			return
		}
		if _, err := hex.DecodeString(req.Message); err != nil {
			apierr.Write(w, apierr.New(apierr.KindInput, "message must be hex-encoded"))
			return
		}

		sig, verified, err := a.SignMessage(r.Context(), req.Curve, req.Passphrase, req.Message)
		if err != nil {
			apierr.Write(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(signMessageResponse{Signature: sig, Verified: verified})
	}
}

// roundResult is the outcome of one node's participation in a round: err
// carries which node (by config index) failed, so a retry can drop exactly
// that one node and substitute a spare healthy one.
type roundResult struct {
	nodeIndex int
	err       error
}

// SignMessage selects the signing quorum and runs §4.9's algorithm,
// substituting one alternate healthy node and retrying the whole round on
// failure, up to RetryConfig.MaxAlternateSelections times.
func (a *Aggregator) SignMessage(ctx context.Context, curveTag, passphrase, messageHex string) (string, bool, error) {
	return a.signMessage(ctx, curveTag, passphrase, messageHex, false)
}

// signMessage is SignMessage's implementation, plus a prehashed flag for
// callers (the PSBT handler) that already hold the exact digest a Taproot
// signature must cover and must not have it hashed again. The ECDSA path
// does not read the flag: it always hashes the message.
func (a *Aggregator) signMessage(ctx context.Context, curveTag, passphrase, messageHex string, prehashed bool) (string, bool, error) {
	report := a.prober.Probe(ctx)
	m := a.cfg.Threshold
	healthy := report.HealthyIndices()
	if len(healthy) < m {
		return "", false, apierr.New(apierr.KindQuorum, fmt.Sprintf("need %d healthy nodes, have %d", m, len(healthy)))
	}

	quorum := append([]int{}, healthy[:m]...)
	spare := append([]int{}, healthy[m:]...)
	retriesLeft := a.maxRetries

	for {
		var sig string
		var verified bool
		var err error
		if curveTag == string(curve.TagECDSASecp256k1) {
			sig, verified, err = a.signECDSA(ctx, passphrase, messageHex, quorum)
		} else {
			sig, verified, err = a.signSchnorr(ctx, curveTag, passphrase, messageHex, quorum, prehashed)
		}
		if err == nil {
			return sig, verified, nil
		}

		var rr *roundResult
		if asRoundResult(err, &rr) && retriesLeft > 0 && len(spare) > 0 {
			logs.Warn("signing: node %d failed, substituting an alternate node: %v", rr.nodeIndex, rr.err)
			quorum = substitute(quorum, rr.nodeIndex, spare[0])
			spare = spare[1:]
			retriesLeft--
			continue
		}
		return "", false, apierr.Wrap(apierr.KindQuorum, "signing round failed", err)
	}
}

func asRoundResult(err error, out **roundResult) bool {
	rr, ok := err.(*roundResult)
	if !ok {
		return false
	}
	*out = rr
	return true
}

func (r *roundResult) Error() string { return fmt.Sprintf("node %d: %v", r.nodeIndex, r.err) }

func substitute(quorum []int, drop, add int) []int {
	out := make([]int, 0, len(quorum))
	for _, id := range quorum {
		if id != drop {
			out = append(out, id)
		}
	}
	return append(out, add)
}

func participantID(nodeIndex int) int { return nodeIndex + 1 }
func nodeIndexOf(participantID int) int { return participantID - 1 }

func toParticipantIDs(quorum []int) []int {
	ids := make([]int, len(quorum))
	for i, idx := range quorum {
		ids[i] = participantID(idx)
	}
	return ids
}

// signSchnorr drives the Schnorr/Ed25519 round1 -> round2 -> aggregate
// sequence across a fixed quorum.
func (a *Aggregator) signSchnorr(ctx context.Context, curveTag, passphrase, messageHex string, quorum []int, prehashed bool) (string, bool, error) {
	sess := session.NewSignSession(session.SignSessionParams{Passphrase: passphrase, Curve: curveTag, Quorum: quorum})
	defer sess.Close()

	quorumIDs := toParticipantIDs(quorum)

	type r1 struct {
		nodeIndex int
		id        int
		resp      nodeclient.SignRound1Response
		err       error
	}
	results := make(chan r1, len(quorum))
	for _, nodeIndex := range quorum {
		go func(nodeIndex int) {
			resp, err := a.clients[nodeIndex].SignRound1(ctx, curveTag, passphrase, messageHex, quorumIDs, prehashed)
			results <- r1{nodeIndex: nodeIndex, id: participantID(nodeIndex), resp: resp, err: err}
		}(nodeIndex)
	}
	handles := make(map[int]string, len(quorum))
	for range quorum {
		res := <-results
		if res.err != nil {
			sess.MarkFailed()
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: res.err}
		}
		handles[res.id] = res.resp.NonceHandle
		payload, _ := json.Marshal(res.resp.Commitments)
		if err := sess.AddCommitment(res.id, payload); err != nil {
			sess.MarkFailed()
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: err}
		}
	}
	if err := sess.TransitionToCommitted(); err != nil {
		sess.MarkFailed()
		return "", false, err
	}

	allCommitments := make([]nodeclient.CommitmentWire, 0, len(quorum))
	for _, p := range sess.CommitmentsOrdered() {
		var cw nodeclient.CommitmentWire
		if err := json.Unmarshal(p.Payload, &cw); err != nil {
			return "", false, err
		}
		allCommitments = append(allCommitments, cw)
	}

	type r2 struct {
		nodeIndex int
		id        int
		share     string
		err       error
	}
	r2results := make(chan r2, len(quorum))
	for _, nodeIndex := range quorum {
		go func(nodeIndex int) {
			id := participantID(nodeIndex)
			resp, err := a.clients[nodeIndex].SignRound2(ctx, curveTag, passphrase, messageHex, handles[id], allCommitments, prehashed)
			r2results <- r2{nodeIndex: nodeIndex, id: id, share: resp.SignatureShare, err: err}
		}(nodeIndex)
	}
	for range quorum {
		res := <-r2results
		if res.err != nil {
			sess.MarkFailed()
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: res.err}
		}
		if err := sess.AddShare(res.id, []byte(res.share)); err != nil {
			sess.MarkFailed()
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: err}
		}
	}

	shares := make([]nodeclient.IDScalar, 0, len(quorum))
	for id, share := range sess.Shares() {
		shares = append(shares, nodeclient.IDScalar{ID: id, Share: string(share)})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })

	aggResp, err := a.clients[quorum[0]].SignAggregate(ctx, curveTag, passphrase, messageHex, allCommitments, shares, prehashed)
	if err != nil {
		sess.MarkFailed()
		return "", false, &roundResult{nodeIndex: quorum[0], err: err}
	}
	sigBytes, err := hex.DecodeString(aggResp.Signature)
	if err != nil {
		return "", false, err
	}
	if err := sess.TransitionToSigned(sigBytes); err != nil {
		return "", false, err
	}
	return aggResp.Signature, aggResp.Verified, nil
}

// ecdsaNodeState is one quorum member's running state across the MtA
// exchange: its round1 broadcast plus the evolving ecdsa_handle the
// aggregator threads through every subsequent round2 call.
type ecdsaNodeState struct {
	gammaPoint nodeclient.PointWire
	ctKappa    string
	paillierN  string
	handle     string
}

func pointFromWire(w nodeclient.PointWire) (curve.Point, error) {
	x, ok := new(big.Int).SetString(w.X, 16)
	y, ok2 := new(big.Int).SetString(w.Y, 16)
	if !ok || !ok2 {
		return curve.Point{}, fmt.Errorf("signing: malformed gamma point")
	}
	return curve.Point{X: x, Y: y}, nil
}

// signECDSA drives the threshold-ECDSA round1, the pairwise MtA dance for
// both the delta and sigma targets, combine, finalize, and aggregate.
func (a *Aggregator) signECDSA(ctx context.Context, passphrase, messageHex string, quorum []int) (string, bool, error) {
	grp, err := curve.ForTag(curve.TagECDSASecp256k1)
	if err != nil {
		return "", false, err
	}
	fieldOrder := grp.Order()
	quorumIDs := toParticipantIDs(quorum)

	type r1 struct {
		nodeIndex int
		id        int
		resp      nodeclient.ECDSARound1Response
		err       error
	}
	results := make(chan r1, len(quorum))
	for _, nodeIndex := range quorum {
		go func(nodeIndex int) {
			resp, err := a.clients[nodeIndex].ECDSARound1(ctx, passphrase, messageHex, quorumIDs)
			results <- r1{nodeIndex: nodeIndex, id: participantID(nodeIndex), resp: resp, err: err}
		}(nodeIndex)
	}
	states := make(map[int]*ecdsaNodeState, len(quorum))
	for range quorum {
		res := <-results
		if res.err != nil {
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: res.err}
		}
		states[res.id] = &ecdsaNodeState{
			gammaPoint: res.resp.GammaPoint,
			ctKappa:    res.resp.CtKappa,
			paillierN:  res.resp.PaillierN,
			handle:     res.resp.ECDSAHandle,
		}
	}

	// Every ordered pair runs the MtA exchange once per target; Alice's
	// ciphertext is always her encrypted kappa, since kappa is the common
	// cross-term factor for both delta (kappa*gamma) and sigma
	// (kappa*lambda*share).
	for _, target := range []string{"delta", "sigma"} {
		for _, pair := range ecdsamath.AllOrderedPairs(len(quorum)) {
			aliceID := quorumIDs[pair[0]]
			bobID := quorumIDs[pair[1]]
			alice := states[aliceID]
			bob := states[bobID]

			bobResp, err := a.clients[nodeIndexOf(bobID)].ECDSAMtABob(ctx, passphrase, bob.handle, target, alice.paillierN, alice.ctKappa)
			if err != nil {
				return "", false, &roundResult{nodeIndex: nodeIndexOf(bobID), err: err}
			}
			bob.handle = bobResp.ECDSAHandle

			aliceResp, err := a.clients[nodeIndexOf(aliceID)].ECDSAMtAAliceFinish(ctx, passphrase, alice.handle, target, bobResp.Response)
			if err != nil {
				return "", false, &roundResult{nodeIndex: nodeIndexOf(aliceID), err: err}
			}
			alice.handle = aliceResp.ECDSAHandle
		}
	}

	type combined struct {
		id         int
		nodeIndex  int
		deltaShare string
		handle     string
		err        error
	}
	cresults := make(chan combined, len(states))
	for id, st := range states {
		go func(id int, st *ecdsaNodeState) {
			nodeIndex := nodeIndexOf(id)
			resp, err := a.clients[nodeIndex].ECDSACombine(ctx, passphrase, st.handle)
			cresults <- combined{id: id, nodeIndex: nodeIndex, deltaShare: resp.DeltaShare, handle: resp.ECDSAHandle, err: err}
		}(id, st)
	}
	deltaShares := make([]*big.Int, 0, len(states))
	deltaSharesHex := make([]string, 0, len(states))
	for range states {
		res := <-cresults
		if res.err != nil {
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: res.err}
		}
		v, ok := new(big.Int).SetString(res.deltaShare, 16)
		if !ok {
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: fmt.Errorf("malformed delta share")}
		}
		deltaShares = append(deltaShares, v)
		deltaSharesHex = append(deltaSharesHex, res.deltaShare)
		states[res.id].handle = res.handle
	}

	var sumGamma curve.Point
	gammaPoints := make([]nodeclient.PointWire, 0, len(states))
	first := true
	for _, st := range states {
		gammaPoints = append(gammaPoints, st.gammaPoint)
		p, err := pointFromWire(st.gammaPoint)
		if err != nil {
			return "", false, err
		}
		if first {
			sumGamma = p
			first = false
			continue
		}
		sumGamma = grp.Add(sumGamma, p)
	}

	delta := ecdsamath.CombineDelta(deltaShares, fieldOrder)
	nonceCommitment, err := ecdsamath.ComputeNonceCommitment(grp, sumGamma, delta, fieldOrder)
	if err != nil {
		return "", false, err
	}
	deltaHex := delta.Text(16)
	rxHex := nonceCommitment.X.Text(16)

	type finalized struct {
		nodeIndex int
		sigShare  string
		err       error
	}
	fresults := make(chan finalized, len(states))
	for id, st := range states {
		go func(id int, handle string) {
			nodeIndex := nodeIndexOf(id)
			resp, err := a.clients[nodeIndex].ECDSAFinalize(ctx, passphrase, handle, deltaHex, rxHex)
			fresults <- finalized{nodeIndex: nodeIndex, sigShare: resp.SigShare, err: err}
		}(id, st.handle)
	}
	sigSharesHex := make([]string, 0, len(states))
	for range states {
		res := <-fresults
		if res.err != nil {
			return "", false, &roundResult{nodeIndex: res.nodeIndex, err: res.err}
		}
		sigSharesHex = append(sigSharesHex, res.sigShare)
	}

	groupPubHex, found, err := a.clients[quorum[0]].GroupPubkey(ctx, string(curve.TagECDSASecp256k1), passphrase)
	if err != nil {
		return "", false, &roundResult{nodeIndex: quorum[0], err: err}
	}
	if !found {
		return "", false, apierr.New(apierr.KindState, "no group public key for this passphrase")
	}

	aggResp, err := a.clients[quorum[0]].ECDSAAggregate(ctx, passphrase, messageHex, gammaPoints, deltaSharesHex, sigSharesHex, groupPubHex)
	if err != nil {
		return "", false, &roundResult{nodeIndex: quorum[0], err: err}
	}
	return aggResp.Signature, aggResp.Verified, nil
}
