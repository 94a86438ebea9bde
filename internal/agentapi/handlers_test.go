package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/identity"
	"github.com/ABTechWorks/TinyLittleHelper/internal/logs"
	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
	"github.com/ABTechWorks/TinyLittleHelper/internal/presence"
)

func init() {
	logs.Init(logs.Options{Level: "error"})
}

type fakeArp struct{ entries map[string]string }

func (f *fakeArp) MACForIP(_ context.Context, ip string) (string, error) {
	mac, ok := f.entries[ip]
	if !ok {
		return "", errors.New("no arp entry")
	}
	return mac, nil
}

type staticAuth struct {
	id  uint
	err error
}

func (a *staticAuth) ResolveRequest(context.Context, *http.Request) (uint, error) {
	return a.id, a.err
}

func newTestHandler(arp *fakeArp) (*Handler, *presence.MemoryStore) {
	store := presence.NewMemoryStore()
	h := New(store, &staticAuth{id: 1}, identity.NewResolver(arp, time.Second))
	return h, store
}

func doJSON(t *testing.T, fn http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func TestRegisterWithResolvableMACDeduplicates(t *testing.T) {
	arp := &fakeArp{entries: map[string]string{}}
	h, store := newTestHandler(arp)

	w := doJSON(t, h.Register, "/agent/register", ContactRequest{
		Name: "Laptop", IP: "192.168.1.5", MAC: "AA:BB:CC:DD:EE:FF", OS: "linux",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		DeviceKey string `json:"device_key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DeviceKey != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("expected normalized MAC key, got %q", resp.DeviceKey)
	}

	// другой claimed_name и IP, тот же MAC — та же запись
	w = doJSON(t, h.Register, "/agent/register", ContactRequest{
		Name: "Laptop-Work", IP: "10.0.0.3", MAC: "aa:bb:cc:dd:ee:ff",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	devs, _ := store.List(context.Background(), 1)
	if len(devs) != 1 {
		t.Fatalf("same MAC must not duplicate, got %d records", len(devs))
	}
	if devs[0].Name != "Laptop-Work" {
		t.Fatalf("display name must follow last contact, got %q", devs[0].Name)
	}
}

func TestRegisterUnresolvedThenRekeyOnHeartbeat(t *testing.T) {
	// сценарий: ARP молчит при регистрации, отвечает на heartbeat
	arp := &fakeArp{entries: map[string]string{}}
	h, store := newTestHandler(arp)
	ctx := context.Background()

	w := doJSON(t, h.Register, "/agent/register", ContactRequest{
		Name: "Laptop", IP: "192.168.1.5",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	d, err := store.Get(ctx, 1, "Laptop")
	if err != nil {
		t.Fatal(err)
	}
	if d.MAC != models.PendingMAC {
		t.Fatalf("unresolved register must store pending mac, got %q", d.MAC)
	}
	if d.Status != models.DeviceStatusOnline {
		t.Fatalf("registered device must display online, got %q", d.Status)
	}

	// ARP прорезался — heartbeat с того же IP переякоривает запись
	arp.entries["192.168.1.5"] = "aa:bb:cc:dd:ee:ff"
	w = doJSON(t, h.Heartbeat, "/agent/heartbeat", ContactRequest{
		Name: "Laptop", IP: "192.168.1.5",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if _, err := store.Get(ctx, 1, "Laptop"); !errors.Is(err, presence.ErrNotFound) {
		t.Fatalf("name key must be removed after rekey, got %v", err)
	}
	d, err = store.Get(ctx, 1, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatal(err)
	}
	if d.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("mac must be updated after rekey, got %q", d.MAC)
	}
	devs, _ := store.List(ctx, 1)
	if len(devs) != 1 {
		t.Fatalf("rekey must not duplicate, got %d records", len(devs))
	}
}

func TestHeartbeatIdempotent(t *testing.T) {
	arp := &fakeArp{entries: map[string]string{}}
	h, store := newTestHandler(arp)
	ctx := context.Background()

	payload := ContactRequest{
		Name: "Phone", MAC: "11:22:33:44:55:66",
		RecentSites: []models.SiteVisit{{Browser: "firefox", URL: "https://example.com", Title: "Example"}},
	}
	var prev *models.Device
	for i := 0; i < 3; i++ {
		w := doJSON(t, h.Heartbeat, "/agent/heartbeat", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("round %d: expected 200, got %d", i, w.Code)
		}
		d, err := store.Get(ctx, 1, "11:22:33:44:55:66")
		if err != nil {
			t.Fatal(err)
		}
		if prev != nil {
			if d.Name != prev.Name || d.MAC != prev.MAC || d.IP != prev.IP || d.OS != prev.OS ||
				!bytes.Equal(d.RecentSites, prev.RecentSites) {
				t.Fatalf("replay must not change non-timestamp fields: %+v vs %+v", d, prev)
			}
			if d.LastSeen.Before(prev.LastSeen) {
				t.Fatalf("last_seen must advance")
			}
		}
		prev = d
	}
	devs, _ := store.List(ctx, 1)
	if len(devs) != 1 {
		t.Fatalf("replay must not duplicate, got %d records", len(devs))
	}
}

func TestValidationErrors(t *testing.T) {
	h, _ := newTestHandler(&fakeArp{entries: map[string]string{}})

	// без имени
	w := doJSON(t, h.Register, "/agent/register", ContactRequest{IP: "10.0.0.1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing name: expected 400, got %d", w.Code)
	}
	// ни IP, ни MAC
	w = doJSON(t, h.Heartbeat, "/agent/heartbeat", ContactRequest{Name: "Laptop"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing ip/mac: expected 400, got %d", w.Code)
	}
	// мусор вместо JSON
	req := httptest.NewRequest(http.MethodPost, "/agent/register", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed payload: expected 400, got %d", rec.Code)
	}
}

func TestAuthError(t *testing.T) {
	store := presence.NewMemoryStore()
	h := New(store, &staticAuth{err: errors.New("unknown token")}, identity.NewResolver(nil, time.Second))

	w := doJSON(t, h.Register, "/agent/register", ContactRequest{Name: "Laptop", IP: "10.0.0.1"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// failingStore имитирует недоступное хранилище.
type failingStore struct{ presence.Store }

func (f *failingStore) Upsert(context.Context, uint, string, presence.Fields) (*models.Device, error) {
	return nil, errors.New("store unavailable")
}

func TestStoreUnavailableSemantics(t *testing.T) {
	fs := &failingStore{Store: presence.NewMemoryStore()}
	h := New(fs, &staticAuth{id: 1}, identity.NewResolver(nil, time.Second))

	// регистрация обязана отдать сбой — агент считает его фатальным
	w := doJSON(t, h.Register, "/agent/register", ContactRequest{Name: "Laptop", IP: "10.0.0.1"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("register: expected 503, got %d", w.Code)
	}
	// heartbeat молчит — агент сам придёт через интервал
	w = doJSON(t, h.Heartbeat, "/agent/heartbeat", ContactRequest{Name: "Laptop", IP: "10.0.0.1"})
	if w.Code != http.StatusOK {
		t.Fatalf("heartbeat: expected 200, got %d", w.Code)
	}
}
