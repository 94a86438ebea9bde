package netscan

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// ErrNoEntry — адрес не найден в ARP-таблице. Это не сбой: устройство может
// быть вне подсети, либо запись протухла.
var ErrNoEntry = errors.New("no arp entry")

// Table — capability "IP на локальной подсети → MAC". Best-effort.
type Table interface {
	MACForIP(ctx context.Context, ip string) (string, error)
}

// ProcTable читает /proc/net/arp и при неудаче пробует бинарь `arp -n`.
type ProcTable struct {
	// Path — переопределяется в тестах; по умолчанию /proc/net/arp.
	Path string
}

func New() *ProcTable { return &ProcTable{Path: "/proc/net/arp"} }

var macRe = regexp.MustCompile(`(?i)(?:[0-9a-f]{2}[:-]){5}[0-9a-f]{2}`)

func (t *ProcTable) MACForIP(ctx context.Context, ip string) (string, error) {
	if strings.TrimSpace(ip) == "" {
		return "", ErrNoEntry
	}
	if mac, err := t.fromProc(ctx, ip); err == nil {
		return mac, nil
	}
	return t.fromBinary(ctx, ip)
}

// Формат /proc/net/arp:
// IP address  HW type  Flags  HW address  Mask  Device
func (t *ProcTable) fromProc(ctx context.Context, ip string) (string, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Scan() // заголовок
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] != ip {
			continue
		}
		mac := fields[3]
		// flags 0x0 — incomplete entry
		if fields[2] == "0x0" || mac == "00:00:00:00:00:00" {
			return "", ErrNoEntry
		}
		return mac, nil
	}
	return "", ErrNoEntry
}

func (t *ProcTable) fromBinary(ctx context.Context, ip string) (string, error) {
	out, err := exec.CommandContext(ctx, "arp", "-n", ip).Output()
	if err != nil {
		return "", ErrNoEntry
	}
	if mac := macRe.FindString(string(out)); mac != "" {
		return mac, nil
	}
	return "", ErrNoEntry
}
