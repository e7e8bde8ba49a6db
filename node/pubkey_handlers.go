package node

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleTransportPubKey answers a peer node's round-2 share-transport
// discovery request. Never requires the HSM to be unlocked — the
// transport key, once derived, is kept in memory independent of lock
// state, and an always-on identity endpoint lets every node discover its
// peers before any passphrase's DKG begins.
func (n *Node) handleTransportPubKey(w http.ResponseWriter, r *http.Request) {
	pub, err := n.TransportPubKey()
	if err != nil {
		writeHSMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transportPubKey": hexEncode(pub)})
}

// handleCurvePubKey returns the group public key for a (curve, passphrase)
// that has already completed DKG.
func (n *Node) handleCurvePubKey(w http.ResponseWriter, r *http.Request) {
	curveTag, err := parseCurveTag(mux.Vars(r)["curve"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	passphrase := r.URL.Query().Get("passphrase")
	if passphrase == "" {
		writeError(w, http.StatusBadRequest, errMissingPassphrase)
		return
	}

	pkp, err := n.store.GetPublicKeyPackage(curveTag, passphrase)
	if err != nil {
		writeHSMError(w, err)
		return
	}
	if pkp == nil {
		writeError(w, http.StatusNotFound, errKeyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"groupPubkey": hexEncode(pkp.GroupPublicKey)})
}
