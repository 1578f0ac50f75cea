package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

func NewRouter(api *API, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(hlog.NewHandler(logger))
	router.Use(hlog.RemoteAddrHandler("ip"))
	router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	router.Use(securityHeaders)

	router.HandleFunc("/transaction", api.CreateTransaction).Methods("POST")
	router.HandleFunc("/transactions", api.GetTransactions).Methods("GET")
	router.HandleFunc("/balance/{address}", api.GetBalance).Methods("GET")
	router.HandleFunc("/blocks", api.GetBlocks).Methods("GET")
	router.HandleFunc("/blocks/{index}", api.GetBlock).Methods("GET")
	router.HandleFunc("/mine", api.MineBlock).Methods("POST")
	router.HandleFunc("/chain", api.GetChain).Methods("GET")
	router.HandleFunc("/healthz", api.Health).Methods("GET")

	return router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
