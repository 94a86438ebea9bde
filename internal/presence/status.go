package presence

import (
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

// DefaultOfflineAfter — окно staleness по умолчанию (агент шлёт heartbeat раз в 30s).
const DefaultOfflineAfter = 60 * time.Second

// DisplayStatus — чистая функция отображаемого статуса.
// Граница включительная: now - lastSeen == timeout всё ещё online.
func DisplayStatus(now, lastSeen time.Time, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = DefaultOfflineAfter
	}
	if now.Sub(lastSeen) <= timeout {
		return models.DeviceStatusOnline
	}
	return models.DeviceStatusOffline
}
