package node

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the node's full HTTP surface.
func (n *Node) Router() http.Handler {
	r := mux.NewRouter()

	r.Methods(http.MethodGet).Path("/health").HandlerFunc(n.handleHealth)

	r.Methods(http.MethodGet).Path("/api/transport/pubkey").HandlerFunc(n.handleTransportPubKey)
	r.Methods(http.MethodGet).Path("/api/curve/{curve}/pubkey").HandlerFunc(n.handleCurvePubKey)

	r.Methods(http.MethodPost).Path("/api/dkg/{curve}/round1").HandlerFunc(n.handleDKGRound1)
	r.Methods(http.MethodPost).Path("/api/dkg/{curve}/round2").HandlerFunc(n.handleDKGRound2)
	r.Methods(http.MethodPost).Path("/api/dkg/{curve}/finalize").HandlerFunc(n.handleDKGFinalize)

	r.Methods(http.MethodPost).Path("/api/frost/{curve}/round1").HandlerFunc(n.handleSignRound1)
	r.Methods(http.MethodPost).Path("/api/frost/{curve}/round2").HandlerFunc(n.handleSignRound2)
	r.Methods(http.MethodPost).Path("/api/frost/{curve}/aggregate").HandlerFunc(n.handleSignAggregate)

	r.Methods(http.MethodPost).Path("/api/hsm/unlock").HandlerFunc(n.handleUnlock)
	r.Methods(http.MethodPost).Path("/api/hsm/lock").HandlerFunc(n.handleLock)
	r.Methods(http.MethodGet).Path("/api/hsm/status").HandlerFunc(n.handleHSMStatus)

	return r
}
