package signing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"frostcustody/apierr"
)

// utxoFetcher adapts a decoded PSBT's WitnessUtxo fields to
// txscript.PrevOutputFetcher.
type utxoFetcher struct {
	prevOuts map[wire.OutPoint]*wire.TxOut
}

func (f *utxoFetcher) FetchPrevOutput(op wire.OutPoint) *wire.TxOut {
	return f.prevOuts[op]
}

type signPSBTRequest struct {
	PSBT        string   `json:"psbt"` // base64
	Passphrases []string `json:"passphrases"` // one per input, in input order
}

type signPSBTResponse struct {
	SignedPSBT      string `json:"signed_psbt"`
	SignaturesAdded int    `json:"signatures_added"`
}

// PSBTHandler serves POST /api/sign/psbt, a Taproot key-spend signer over
// every input of a partially-signed Bitcoin transaction. Each input is
// signed by the custody group whose passphrase the caller names for it,
// via the same Schnorr signing path /api/sign/message uses.
func (a *Aggregator) PSBTHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signPSBTRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.Write(w, apierr.New(apierr.KindInput, "malformed request body"))
			return
		}
		if req.PSBT == "" || len(req.Passphrases) == 0 {
			apierr.Write(w, apierr.New(apierr.KindInput, "psbt and passphrases are required"))
			return
		}

		resp, err := a.SignPSBT(r.Context(), req.PSBT, req.Passphrases)
		if err != nil {
			apierr.Write(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// SignPSBT decodes a base64 PSBT, signs every Taproot key-spend input whose
// index has a matching passphrase, and returns the re-encoded PSBT with
// each TaprootKeySpendSig field populated.
func (a *Aggregator) SignPSBT(ctx context.Context, psbtB64 string, passphrases []string) (signPSBTResponse, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader([]byte(psbtB64)), true)
	if err != nil {
		return signPSBTResponse{}, apierr.Wrap(apierr.KindInput, "malformed psbt", err)
	}
	tx := packet.UnsignedTx
	if len(passphrases) != len(tx.TxIn) {
		return signPSBTResponse{}, apierr.New(apierr.KindInput, fmt.Sprintf("expected %d passphrases, one per input, got %d", len(tx.TxIn), len(passphrases)))
	}

	fetcher := &utxoFetcher{prevOuts: make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))}
	for i, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return signPSBTResponse{}, apierr.New(apierr.KindInput, fmt.Sprintf("input %d missing witness utxo", i))
		}
		fetcher.prevOuts[tx.TxIn[i].PreviousOutPoint] = in.WitnessUtxo
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	added := 0
	for i := range tx.TxIn {
		sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, i, fetcher)
		if err != nil {
			return signPSBTResponse{}, apierr.Wrap(apierr.KindProtocol, fmt.Sprintf("input %d sighash failed", i), err)
		}

		sigHex, verified, err := a.signMessage(ctx, "schnorr-secp256k1", passphrases[i], hex.EncodeToString(sigHash), true)
		if err != nil {
			return signPSBTResponse{}, err
		}
		if !verified {
			return signPSBTResponse{}, apierr.New(apierr.KindProtocol, fmt.Sprintf("input %d: node rejected its own aggregated signature", i))
		}
		sigBytes, err := hex.DecodeString(sigHex)
		if err != nil {
			return signPSBTResponse{}, apierr.Wrap(apierr.KindProtocol, "malformed signature", err)
		}
		if _, err := schnorr.ParseSignature(sigBytes); err != nil {
			return signPSBTResponse{}, apierr.Wrap(apierr.KindProtocol, fmt.Sprintf("input %d: invalid schnorr signature", i), err)
		}

		packet.Inputs[i].TaprootKeySpendSig = sigBytes
		tx.TxIn[i].Witness = wire.TxWitness{sigBytes}
		added++
	}

	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return signPSBTResponse{}, apierr.Wrap(apierr.KindProtocol, "psbt re-serialization failed", err)
	}

	return signPSBTResponse{
		SignedPSBT:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		SignaturesAdded: added,
	}, nil
}
