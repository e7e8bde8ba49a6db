package address

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the address aggregator's full HTTP surface.
func (a *Aggregator) Router() http.Handler {
	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(a.prober.Handler())
	r.Methods(http.MethodPost).Path("/api/address/generate").HandlerFunc(a.Handler())
	return r
}
