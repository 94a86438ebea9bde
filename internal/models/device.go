package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
)

// PendingMAC — сентинел: MAC ещё не разрешён, запись заякорена claimed_name.
// Такой ключ не считается стабильным — при первом же резолве MAC запись
// переякоривается (rekey) на нормализованный MAC.
const PendingMAC = "pending"

// MaxRecentSites — верхняя граница списка recent_sites (last-write-wins).
const MaxRecentSites = 20

// SiteVisit — элемент телеметрии recent_sites.
type SiteVisit struct {
	Browser string `json:"browser"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

// Device — запись устройства. Уникальность ключа — в рамках аккаунта.
type Device struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	AccountID uint   `gorm:"uniqueIndex:uniq_acct_key,priority:1;not null" json:"-"`
	DeviceKey string `gorm:"uniqueIndex:uniq_acct_key,priority:2;size:255;not null" json:"device_key"`

	Name string `gorm:"size:255" json:"name"`
	IP   string `gorm:"size:64"  json:"ip,omitempty"`
	MAC  string `gorm:"size:64"  json:"mac,omitempty"`
	OS   string `gorm:"size:128" json:"os,omitempty"`

	RecentSites datatypes.JSON `json:"recent_sites,omitempty"`

	// LastSeen — ground truth; Status — advisory (пересчитывается на чтении).
	LastSeen time.Time `gorm:"index" json:"last_seen"`
	Status   string    `gorm:"size:16" json:"status"`
}

// Sites распаковывает recent_sites; пустое поле — пустой список.
func (d *Device) Sites() []SiteVisit {
	if len(d.RecentSites) == 0 {
		return nil
	}
	var out []SiteVisit
	if err := json.Unmarshal(d.RecentSites, &out); err != nil {
		return nil
	}
	return out
}

// EncodeSites упаковывает список с обрезкой до MaxRecentSites.
func EncodeSites(sites []SiteVisit) datatypes.JSON {
	if len(sites) == 0 {
		return nil
	}
	if len(sites) > MaxRecentSites {
		sites = sites[:MaxRecentSites]
	}
	b, err := json.Marshal(sites)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
