package dashboard

import "github.com/gorilla/mux"

func RegisterRoutes(r *mux.Router, h *Handler) {
	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/signup", h.Signup).Methods("POST")
	sub.HandleFunc("/login", h.Login).Methods("POST")
	sub.HandleFunc("/logout", h.Logout).Methods("POST")
	sub.HandleFunc("/account", h.Account).Methods("GET")
	sub.HandleFunc("/devices", h.Devices).Methods("GET")
}
