package signing

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the signing aggregator's full HTTP surface.
func (a *Aggregator) Router() http.Handler {
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(a.prober.Handler())
	r.Methods(http.MethodPost).Path("/api/sign/message").HandlerFunc(a.MessageHandler())
	r.Methods(http.MethodPost).Path("/api/sign/psbt").HandlerFunc(a.PSBTHandler())
	return r
}
