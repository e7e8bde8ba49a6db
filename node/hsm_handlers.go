package node

import (
	"encoding/json"
	"net/http"

	"frostcustody/hsm"
)

type unlockRequest struct {
	PIN string `json:"pin"`
}

type unlockResponse struct {
	Status string `json:"status"`
}

// handleUnlock supplies the HSM's PIN. A fresh unlock also (re)derives this
// node's transport identity, since deriveTransportKey requires a signature
// the provider refuses to produce while locked.
func (n *Node) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fresh, err := n.provider.Unlock(req.PIN)
	if err != nil {
		status := http.StatusUnauthorized
		if err == hsm.ErrWrongPIN {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err)
		return
	}
	if fresh {
		n.store.InvalidateKeyCache()
		if err := n.deriveTransportKey(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, unlockResponse{Status: "unlocked"})
}

func (n *Node) handleLock(w http.ResponseWriter, r *http.Request) {
	n.provider.Lock()
	n.store.InvalidateKeyCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

type hsmStatusResponse struct {
	Unlocked    bool   `json:"unlocked"`
	DeviceLabel string `json:"device_label"`
}

func (n *Node) handleHSMStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hsmStatusResponse{
		Unlocked:    !n.provider.IsLocked(),
		DeviceLabel: n.provider.Description(),
	})
}

func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"nodeIndex": n.cfg.NodeIndex,
		"locked":    n.provider.IsLocked(),
	})
}
