package agentapi

import "github.com/gorilla/mux"

func RegisterRoutes(r *mux.Router, h *Handler) {
	sub := r.PathPrefix("/agent").Subrouter()
	sub.HandleFunc("/register", h.Register).Methods("POST")
	sub.HandleFunc("/heartbeat", h.Heartbeat).Methods("POST")
}
