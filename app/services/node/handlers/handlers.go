// Package handlers manages the different versions of the API.
package handlers

import (
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/go-playground/validator/v10"
	"github.com/kaoiks/crypto-coin/app/services/node/handlers/v1/public"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
	"github.com/kaoiks/crypto-coin/foundation/events"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	State    *state.State
	Evts     *events.Events
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {
	mux := httptreemux.NewContextMux()

	hdl := public.Handlers{
		Log:      cfg.Log,
		State:    cfg.State,
		Evts:     cfg.Evts,
		Validate: validator.New(),
	}

	mux.GET("/v1/info", hdl.Info)
	mux.GET("/v1/genesis", hdl.Genesis)
	mux.GET("/v1/chain", hdl.Chain)
	mux.GET("/v1/mempool", hdl.Mempool)
	mux.GET("/v1/peers", hdl.Peers)
	mux.GET("/v1/accounts", hdl.Accounts)
	mux.POST("/v1/tx", hdl.SubmitTransaction)
	mux.GET("/v1/events", hdl.Events)

	return cors(mux)
}

// cors opens the read API up to browser based viewers.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================

// DebugStandardLibraryMux registers all the debug routes from the standard
// library into a new mux bypassing the use of the DefaultServerMux. Using
// the DefaultServerMux would be a security risk since a dependency could
// inject a handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service.
func DebugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := DebugStandardLibraryMux()

	readiness := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","build":"` + build + `"}`))
	}

	mux.HandleFunc("/debug/readiness", readiness)
	mux.HandleFunc("/debug/liveness", readiness)

	return mux
}
