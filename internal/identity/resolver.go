package identity

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
	"github.com/ABTechWorks/TinyLittleHelper/internal/netscan"
)

// Result — итог вычисления ключа устройства.
type Result struct {
	Key string // стабильный ключ: нормализованный MAC либо claimed_name
	MAC string // нормализованный MAC или models.PendingMAC
	// Anchored=true — ключ заякорен MAC-ом (переживает смену IP и переименование).
	Anchored bool
}

type Resolver struct {
	arp     netscan.Table
	timeout time.Duration
}

// NewResolver: arp == nil — без ARP-резолва (ключ по имени при отсутствии MAC).
func NewResolver(arp netscan.Table, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{arp: arp, timeout: timeout}
}

// ResolveKey никогда не возвращает ошибку: приоритет MAC → ARP по IP → имя.
// Отсутствие всех атрибутов — забота валидации на границе, не резолвера.
func (r *Resolver) ResolveKey(ctx context.Context, claimedName, ip, claimedMAC string) Result {
	// 1) явный MAC (не сентинел) — сильнейший сигнал
	if mac, ok := NormalizeMAC(claimedMAC); ok {
		return Result{Key: mac, MAC: mac, Anchored: true}
	}

	// 2) best-effort ARP по наблюдаемому IP; таймаут деградирует до pending
	if ip != "" && r.arp != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		raw, err := r.arp.MACForIP(lookupCtx, ip)
		cancel()
		if err == nil {
			if mac, ok := NormalizeMAC(raw); ok {
				return Result{Key: mac, MAC: mac, Anchored: true}
			}
		}
	}

	// 3) fallback: ключ — claimed_name, MAC помечаем pending для будущего rekey
	return Result{Key: claimedName, MAC: models.PendingMAC, Anchored: false}
}

// NormalizeMAC приводит MAC к канону: lowercase, 6 октетов через двоеточие.
// Сентинел "pending" и пустые значения — не MAC.
func NormalizeMAC(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, models.PendingMAC) {
		return "", false
	}
	hw, err := net.ParseMAC(raw)
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return hw.String(), true
}
