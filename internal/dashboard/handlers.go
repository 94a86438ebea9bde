package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/auth"
	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
	"github.com/ABTechWorks/TinyLittleHelper/internal/presence"
)

type Handler struct {
	store presence.Store
	auth  *auth.Service
	// окно staleness для отображаемого статуса
	offlineAfter time.Duration
}

func New(store presence.Store, authSvc *auth.Service, offlineAfter time.Duration) *Handler {
	return &Handler{store: store, auth: authSvc, offlineAfter: offlineAfter}
}

// deviceView — строка дашборда; статус считается на чтении от last_seen,
// persisted-поле не является ground truth.
type deviceView struct {
	DeviceKey   string             `json:"device_key"`
	Name        string             `json:"name"`
	IP          string             `json:"ip,omitempty"`
	MAC         string             `json:"mac,omitempty"`
	OS          string             `json:"os,omitempty"`
	Status      string             `json:"status"`
	LastSeen    time.Time          `json:"last_seen"`
	RecentSites []models.SiteVisit `json:"recent_sites,omitempty"`
}

// POST /api/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Validation Error", "malformed payload", nil)
		return
	}
	a, err := h.auth.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAccountExists) {
			models.WriteProblem(w, http.StatusConflict, "Conflict", "username already exists", nil)
			return
		}
		models.WriteProblem(w, http.StatusBadRequest, "Validation Error", err.Error(), nil)
		return
	}
	// agent_token показываем один раз — агенты забирают его отсюда
	models.WriteJSON(w, http.StatusCreated, map[string]any{
		"username":    a.Username,
		"agent_token": a.AgentToken,
	})
}

// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Validation Error", "malformed payload", nil)
		return
	}
	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid username or password", nil)
			return
		}
		models.WriteProblem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error(), nil)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	models.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.SessionCookie); err == nil && c.Value != "" {
		_ = h.auth.Logout(r.Context(), c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name: auth.SessionCookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1,
	})
	models.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /api/devices
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.authorize(w, r)
	if !ok {
		return
	}
	views, err := h.listViews(r, acct)
	if err != nil {
		models.WriteProblem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, views)
}

// GET /api/account — снапшот аккаунта для дашборда (имя + устройства).
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.authorize(w, r)
	if !ok {
		return
	}
	a, err := h.auth.Account(r.Context(), acct)
	if err != nil {
		models.WriteProblem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error(), nil)
		return
	}
	views, err := h.listViews(r, acct)
	if err != nil {
		models.WriteProblem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    a.Username,
		"devices": views,
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (uint, bool) {
	acct, err := h.auth.ResolveRequest(r.Context(), r)
	if err != nil {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "not logged in", nil)
		return 0, false
	}
	return acct, true
}

func (h *Handler) listViews(r *http.Request, acct uint) ([]deviceView, error) {
	devs, err := h.store.List(r.Context(), acct)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]deviceView, 0, len(devs))
	for _, d := range devs {
		views = append(views, deviceView{
			DeviceKey:   d.DeviceKey,
			Name:        d.Name,
			IP:          d.IP,
			MAC:         d.MAC,
			OS:          d.OS,
			Status:      presence.DisplayStatus(now, d.LastSeen, h.offlineAfter),
			LastSeen:    d.LastSeen,
			RecentSites: d.Sites(),
		})
	}
	return views, nil
}
