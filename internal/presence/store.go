package presence

import (
	"context"
	"errors"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

var (
	ErrNotFound = errors.New("device not found")
	// ErrKeyConflict — rekey упёрся в существующую запись. Наружу не отдаётся:
	// реализации разрешают конфликт merge-политикой (MAC-запись побеждает,
	// last_seen берётся максимальный).
	ErrKeyConflict = errors.New("device key conflict")
)

// Fields — частичное обновление записи: пустая строка / nil — "поле не пришло,
// оставить прежнее значение". last_seen и status выставляет сам Store.
type Fields struct {
	Name        string
	IP          string
	MAC         string
	OS          string
	RecentSites []models.SiteVisit
}

// Store — таблица присутствия устройств, ключ уникален в рамках аккаунта.
// Мутации по одному ключу линеаризуются реализацией; чтения видят
// согласованный снапшот.
type Store interface {
	// Upsert вставляет либо мёржит запись и всегда обновляет last_seen/status.
	Upsert(ctx context.Context, accountID uint, key string, f Fields) (*models.Device, error)
	// Rekey атомарно переименовывает ключ записи; no-op при old == new.
	// Конфликт с существующей записью разрешается внутри (см. ErrKeyConflict).
	Rekey(ctx context.Context, accountID uint, oldKey, newKey string) error
	Get(ctx context.Context, accountID uint, key string) (*models.Device, error)
	// List — снапшот, упорядоченный по device_key.
	List(ctx context.Context, accountID uint) ([]models.Device, error)
	// SweepStale проставляет advisory-статус offline записям с last_seen
	// строго раньше cutoff. Возвращает число перелейбленных записей.
	SweepStale(ctx context.Context, cutoff time.Time) (int, error)
}
