package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

// MemoryStore — таблица в памяти для режима без БД.
// Один RWMutex на таблицу: на этом масштабе достаточно для линеаризации
// мутаций по ключу; sweep намеренно не держит lock на весь проход.
type MemoryStore struct {
	mu     sync.RWMutex
	byAcct map[uint]map[string]*models.Device
	nextID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byAcct: make(map[uint]map[string]*models.Device)}
}

func (m *MemoryStore) Upsert(_ context.Context, accountID uint, key string, f Fields) (*models.Device, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	devs := m.byAcct[accountID]
	if devs == nil {
		devs = make(map[string]*models.Device)
		m.byAcct[accountID] = devs
	}

	d, ok := devs[key]
	if !ok {
		m.nextID++
		d = &models.Device{
			ID:        m.nextID,
			CreatedAt: now,
			AccountID: accountID,
			DeviceKey: key,
		}
		devs[key] = d
	}
	applyFields(d, f)
	d.LastSeen = now
	d.Status = models.DeviceStatusOnline
	d.UpdatedAt = now

	cp := *d
	return &cp, nil
}

func (m *MemoryStore) Rekey(_ context.Context, accountID uint, oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	devs := m.byAcct[accountID]
	old, ok := devs[oldKey]
	if !ok {
		return ErrNotFound
	}
	if dst, exists := devs[newKey]; exists {
		// конфликт: MAC-заякоренная запись побеждает, метаданные старой
		// выбрасываем, last_seen — максимальный из двух
		if old.LastSeen.After(dst.LastSeen) {
			dst.LastSeen = old.LastSeen
			dst.Status = models.DeviceStatusOnline
		}
		delete(devs, oldKey)
		return nil
	}
	old.DeviceKey = newKey
	old.UpdatedAt = time.Now().UTC()
	devs[newKey] = old
	delete(devs, oldKey)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, accountID uint, key string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.byAcct[accountID][key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, accountID uint) ([]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	devs := m.byAcct[accountID]
	out := make([]models.Device, 0, len(devs))
	for _, d := range devs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceKey < out[j].DeviceKey })
	return out, nil
}

func (m *MemoryStore) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	// снапшот ключей без удержания write-lock на весь скан
	type ref struct {
		acct uint
		key  string
	}
	m.mu.RLock()
	refs := make([]ref, 0)
	for acct, devs := range m.byAcct {
		for key := range devs {
			refs = append(refs, ref{acct, key})
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, r := range refs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		m.mu.Lock()
		if d, ok := m.byAcct[r.acct][r.key]; ok &&
			d.Status != models.DeviceStatusOffline && d.LastSeen.Before(cutoff) {
			d.Status = models.DeviceStatusOffline
			n++
		}
		m.mu.Unlock()
	}
	return n, nil
}

func applyFields(d *models.Device, f Fields) {
	if f.Name != "" {
		d.Name = f.Name
	}
	if f.IP != "" {
		d.IP = f.IP
	}
	if f.MAC != "" {
		d.MAC = f.MAC
	}
	if f.OS != "" {
		d.OS = f.OS
	}
	if f.RecentSites != nil {
		d.RecentSites = models.EncodeSites(f.RecentSites)
	}
}
