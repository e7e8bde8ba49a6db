// Package nodeclient is the aggregators' HTTP client against a signer
// node's surface (node/router.go). It knows the node wire shapes but none
// of the cryptography — every response is passed through to the
// orchestration layer (frost/runtime/session) or the chain encoder
// untouched.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"frostcustody/apierr"
)

// Client talks to one signer node.
type Client struct {
	BaseURL string
	Index   int
	http    *http.Client
}

func New(index int, baseURL string, timeout time.Duration) *Client {
	return &Client{Index: index, BaseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type IDPackage struct {
	ID  int    `json:"id"`
	Pkg string `json:"pkg"`
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("nodeclient: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apierr.Wrap(apierr.KindResource, fmt.Sprintf("node %d unreachable at %s", c.Index, path), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var body struct {
			ErrorKind string `json:"error_kind"`
			Detail    string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("nodeclient: node %d %s returned %d: %s (%s)", c.Index, path, resp.StatusCode, body.Detail, body.ErrorKind)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("nodeclient: decode node %d %s response: %w", c.Index, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, respBody any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apierr.Wrap(apierr.KindResource, fmt.Sprintf("node %d unreachable at %s", c.Index, path), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nodeclient: node %d %s returned %d", c.Index, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

// Health is the node's own self-report. A transport failure or a non-200
// answer comes back as Client.Health's error, not as a field here, since
// that failure is itself the signal a health probe is checking for.
type Health struct {
	Status    string `json:"status"`
	NodeIndex int    `json:"nodeIndex"`
	Locked    bool   `json:"locked"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, "/health", &h)
	return h, err
}

func (c *Client) GroupPubkey(ctx context.Context, curveTag, passphrase string) (string, bool, error) {
	var body struct {
		GroupPubkey string `json:"groupPubkey"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/curve/%s/pubkey?passphrase=%s", curveTag, passphrase), &body)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return body.GroupPubkey, true, nil
}

func isNotFound(err error) bool {
	return err != nil && bytes.Contains([]byte(err.Error()), []byte("returned 404"))
}

// --- DKG ---

type DKGRound1Response struct {
	Round1Package string `json:"round1_package"`
}

func (c *Client) DKGRound1(ctx context.Context, curveTag, passphrase string) (DKGRound1Response, error) {
	var resp DKGRound1Response
	err := c.post(ctx, "/api/dkg/"+curveTag+"/round1", map[string]string{"passphrase": passphrase}, &resp)
	return resp, err
}

type DKGRound2Response struct {
	Round2Packages []IDPackage `json:"round2_packages"`
}

func (c *Client) DKGRound2(ctx context.Context, curveTag, passphrase string, round1Packages []IDPackage) (DKGRound2Response, error) {
	var resp DKGRound2Response
	err := c.post(ctx, "/api/dkg/"+curveTag+"/round2", map[string]any{
		"passphrase":      passphrase,
		"round1_packages": round1Packages,
	}, &resp)
	return resp, err
}

type DKGFinalizeResponse struct {
	GroupPubkey    string `json:"group_pubkey"`
	VerifyingShare string `json:"verifying_share"`
}

func (c *Client) DKGFinalize(ctx context.Context, curveTag, passphrase string, round2Packages []IDPackage) (DKGFinalizeResponse, error) {
	var resp DKGFinalizeResponse
	err := c.post(ctx, "/api/dkg/"+curveTag+"/finalize", map[string]any{
		"passphrase":      passphrase,
		"round2_packages": round2Packages,
	}, &resp)
	return resp, err
}

// --- Signing ---

type CommitmentWire struct {
	ID int    `json:"id"`
	Dx string `json:"dx"`
	Dy string `json:"dy"`
	Ex string `json:"ex"`
	Ey string `json:"ey"`
}

type SignRound1Response struct {
	Commitments CommitmentWire `json:"commitments"`
	NonceHandle string         `json:"nonce_handle"`
}

func (c *Client) SignRound1(ctx context.Context, curveTag, passphrase, messageHex string, quorumIDs []int, prehashed bool) (SignRound1Response, error) {
	var resp SignRound1Response
	err := c.post(ctx, "/api/frost/"+curveTag+"/round1", map[string]any{
		"passphrase": passphrase,
		"message":    messageHex,
		"quorum_ids": quorumIDs,
		"prehashed":  prehashed,
	}, &resp)
	return resp, err
}

type SignRound2Response struct {
	SignatureShare string `json:"signature_share"`
	ID             int    `json:"id"`
}

func (c *Client) SignRound2(ctx context.Context, curveTag, passphrase, messageHex, nonceHandle string, allCommitments []CommitmentWire, prehashed bool) (SignRound2Response, error) {
	var resp SignRound2Response
	err := c.post(ctx, "/api/frost/"+curveTag+"/round2", map[string]any{
		"passphrase":      passphrase,
		"message":         messageHex,
		"nonce_handle":    nonceHandle,
		"all_commitments": allCommitments,
		"prehashed":       prehashed,
	}, &resp)
	return resp, err
}

type IDScalar struct {
	ID    int    `json:"id"`
	Share string `json:"share"`
}

type SignAggregateResponse struct {
	Signature string `json:"signature"`
	Verified  bool   `json:"verified"`
}

func (c *Client) SignAggregate(ctx context.Context, curveTag, passphrase, messageHex string, allCommitments []CommitmentWire, shares []IDScalar, prehashed bool) (SignAggregateResponse, error) {
	var resp SignAggregateResponse
	err := c.post(ctx, "/api/frost/"+curveTag+"/aggregate", map[string]any{
		"passphrase":       passphrase,
		"message":          messageHex,
		"all_commitments":  allCommitments,
		"signature_shares": shares,
		"prehashed":        prehashed,
	}, &resp)
	return resp, err
}

// --- Threshold ECDSA ---

type PointWire struct {
	X string `json:"x"`
	Y string `json:"y"`
}

type ECDSARound1Response struct {
	GammaPoint  PointWire `json:"gamma_point"`
	CtKappa     string    `json:"ct_kappa"`
	CtGamma     string    `json:"ct_gamma"`
	PaillierN   string    `json:"paillier_n"`
	ECDSAHandle string    `json:"ecdsa_handle"`
}

// ECDSARound1 is the same wire path as SignRound1 (curve=ecdsa-secp256k1);
// the node dispatches on the curve path segment, not a different route.
func (c *Client) ECDSARound1(ctx context.Context, passphrase, messageHex string, quorumIDs []int) (ECDSARound1Response, error) {
	var resp ECDSARound1Response
	err := c.post(ctx, "/api/frost/ecdsa-secp256k1/round1", map[string]any{
		"passphrase": passphrase,
		"message":    messageHex,
		"quorum_ids": quorumIDs,
	}, &resp)
	return resp, err
}

// ECDSARound2Response covers every phase's response shape; only the
// fields a given phase actually returns are populated.
type ECDSARound2Response struct {
	ECDSAHandle string `json:"ecdsa_handle"`
	Response    string `json:"response"`
	DeltaShare  string `json:"delta_share"`
	SigShare    string `json:"sig_share"`
}

type ecdsaRound2Request struct {
	Passphrase      string `json:"passphrase"`
	Phase           string `json:"phase"`
	ECDSAHandle     string `json:"ecdsa_handle"`
	Target          string `json:"target,omitempty"`
	AlicePaillierN  string `json:"alice_paillier_n,omitempty"`
	AliceCiphertext string `json:"alice_ciphertext,omitempty"`
	BobResponse     string `json:"bob_response,omitempty"`
	Delta           string `json:"delta,omitempty"`
	Rx              string `json:"rx,omitempty"`
}

// ECDSAMtABob asks handle's owning node to act as Bob against alice's
// published Paillier ciphertext for the given target ("delta" or
// "sigma"), returning its MtA response and an updated handle.
func (c *Client) ECDSAMtABob(ctx context.Context, passphrase, handle, target, alicePaillierN, aliceCiphertext string) (ECDSARound2Response, error) {
	var resp ECDSARound2Response
	err := c.post(ctx, "/api/frost/ecdsa-secp256k1/round2", ecdsaRound2Request{
		Passphrase:      passphrase,
		Phase:           "mta_bob",
		ECDSAHandle:     handle,
		Target:          target,
		AlicePaillierN:  alicePaillierN,
		AliceCiphertext: aliceCiphertext,
	}, &resp)
	return resp, err
}

// ECDSAMtAAliceFinish asks handle's owning node (the "Alice" side of one
// ordered pair) to decrypt a Bob response and fold the resulting alpha
// share into its handle.
func (c *Client) ECDSAMtAAliceFinish(ctx context.Context, passphrase, handle, target, bobResponse string) (ECDSARound2Response, error) {
	var resp ECDSARound2Response
	err := c.post(ctx, "/api/frost/ecdsa-secp256k1/round2", ecdsaRound2Request{
		Passphrase:  passphrase,
		Phase:       "mta_alice_finish",
		ECDSAHandle: handle,
		Target:      target,
		BobResponse: bobResponse,
	}, &resp)
	return resp, err
}

// ECDSACombine folds a node's diagonal terms together with every MtA
// share collected so far, returning its public delta share.
func (c *Client) ECDSACombine(ctx context.Context, passphrase, handle string) (ECDSARound2Response, error) {
	var resp ECDSARound2Response
	err := c.post(ctx, "/api/frost/ecdsa-secp256k1/round2", ecdsaRound2Request{
		Passphrase:  passphrase,
		Phase:       "combine",
		ECDSAHandle: handle,
	}, &resp)
	return resp, err
}

// ECDSAFinalize computes a node's share of the final signature once the
// aggregator has revealed the public delta scalar and nonce commitment.
func (c *Client) ECDSAFinalize(ctx context.Context, passphrase, handle, delta, rx string) (ECDSARound2Response, error) {
	var resp ECDSARound2Response
	err := c.post(ctx, "/api/frost/ecdsa-secp256k1/round2", ecdsaRound2Request{
		Passphrase:  passphrase,
		Phase:       "finalize",
		ECDSAHandle: handle,
		Delta:       delta,
		Rx:          rx,
	}, &resp)
	return resp, err
}

type ECDSAAggregateResponse struct {
	Signature string `json:"signature"`
	Verified  bool   `json:"verified"`
}

func (c *Client) ECDSAAggregate(ctx context.Context, passphrase, messageHex string, gammaPoints []PointWire, deltaShares, sigShares []string, groupPubkey string) (ECDSAAggregateResponse, error) {
	var resp ECDSAAggregateResponse
	err := c.post(ctx, "/api/frost/ecdsa-secp256k1/aggregate", map[string]any{
		"passphrase":   passphrase,
		"message":      messageHex,
		"gamma_points": gammaPoints,
		"delta_shares": deltaShares,
		"sig_shares":   sigShares,
		"group_pubkey": groupPubkey,
	}, &resp)
	return resp, err
}
