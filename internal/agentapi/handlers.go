package agentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ABTechWorks/TinyLittleHelper/internal/identity"
	"github.com/ABTechWorks/TinyLittleHelper/internal/logs"
	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
	"github.com/ABTechWorks/TinyLittleHelper/internal/presence"
)

// AccountResolver — capability "запрос → id аккаунта" (токен агента или сессия).
type AccountResolver interface {
	ResolveRequest(ctx context.Context, r *http.Request) (uint, error)
}

type Handler struct {
	store    presence.Store
	auth     AccountResolver
	resolver *identity.Resolver
}

func New(store presence.Store, auth AccountResolver, resolver *identity.Resolver) *Handler {
	return &Handler{store: store, auth: auth, resolver: resolver}
}

// ContactRequest — контакт агента: name обязателен, хотя бы один из ip/mac
// должен присутствовать; os и recent_sites — опциональны.
type ContactRequest struct {
	Name        string             `json:"name"`
	IP          string             `json:"ip,omitempty"`
	MAC         string             `json:"mac,omitempty"`
	OS          string             `json:"os,omitempty"`
	RecentSites []models.SiteVisit `json:"recent_sites,omitempty"`
}

func (c *ContactRequest) validate() string {
	if strings.TrimSpace(c.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(c.IP) == "" && strings.TrimSpace(c.MAC) == "" {
		return "at least one of ip/mac is required"
	}
	return ""
}

// POST /agent/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	acct, req, ok := h.authAndDecode(w, r)
	if !ok {
		return
	}

	dev, err := h.contact(r.Context(), acct, req)
	if err != nil {
		logs.Logger.Errorf("register: account=%d device=%q: %v", acct, req.Name, err)
		models.WriteProblem(w, http.StatusServiceUnavailable,
			"Store Unavailable", "device registration failed, retry later", nil)
		return
	}
	models.WriteJSON(w, http.StatusCreated, map[string]any{
		"ok":         true,
		"device_key": dev.DeviceKey,
		"status":     dev.Status,
	})
}

// POST /agent/heartbeat
// Идемпотентен; сбой хранилища для агента невидим — он сам придёт через
// очередной интервал.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	acct, req, ok := h.authAndDecode(w, r)
	if !ok {
		return
	}

	if _, err := h.contact(r.Context(), acct, req); err != nil {
		logs.Logger.Errorf("heartbeat: account=%d device=%q: %v", acct, req.Name, err)
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) authAndDecode(w http.ResponseWriter, r *http.Request) (uint, *ContactRequest, bool) {
	acct, err := h.auth.ResolveRequest(r.Context(), r)
	if err != nil {
		models.WriteProblem(w, http.StatusUnauthorized,
			"Unauthorized", "unknown account or token", nil)
		return 0, nil, false
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest,
			"Validation Error", "malformed payload: "+err.Error(), nil)
		return 0, nil, false
	}
	if msg := req.validate(); msg != "" {
		models.WriteProblem(w, http.StatusBadRequest, "Validation Error", msg, nil)
		return 0, nil, false
	}
	return acct, &req, true
}

// contact — общий путь register/heartbeat: резолв ключа, переякорение
// pending-записи при появлении MAC, upsert.
func (h *Handler) contact(ctx context.Context, acct uint, req *ContactRequest) (*models.Device, error) {
	res := h.resolver.ResolveKey(ctx, req.Name, req.IP, req.MAC)

	if res.Anchored && res.Key != req.Name {
		// та же физическая машина могла быть заведена по имени с mac=pending —
		// тогда мигрируем запись на MAC, а не создаём дубликат
		if prev, err := h.store.Get(ctx, acct, req.Name); err == nil && prev.MAC == models.PendingMAC {
			if err := h.store.Rekey(ctx, acct, req.Name, res.Key); err != nil && !errors.Is(err, presence.ErrNotFound) {
				return nil, err
			}
		}
	}

	return h.store.Upsert(ctx, acct, res.Key, presence.Fields{
		Name:        req.Name,
		IP:          req.IP,
		MAC:         res.MAC,
		OS:          req.OS,
		RecentSites: req.RecentSites,
	})
}
