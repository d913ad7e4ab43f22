// Package featureflags evaluates runtime switches configured as a
// comma-separated key=value list, e.g. "html_forms=on,new_catalog=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
)

// HTMLForms gates the server-rendered pages and their form handlers.
const HTMLForms = "html_forms"

// defaults apply to flags the configuration does not mention.
var defaults = map[string]string{
	HTMLForms: "on",
}

// Manager holds parsed flag values. It is safe for concurrent use; Set
// changes a value for the lifetime of the process.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]string
}

// NewManager parses raw. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || !validValue(value) {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether name is on for userID.
// Values are on/true/1, off/false/0, or N% for a deterministic per-user
// rollout. Percentage rollouts never include anonymous users unless N is 100.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	m.mu.RLock()
	value, ok := m.flags[normalize(name)]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return evaluate(name, value, userID)
}

// Set overrides name with value. It returns an error for values Enabled
// cannot interpret.
func (m *Manager) Set(name, value string) error {
	key, value := normalize(name), normalize(value)
	if key == "" {
		return fmt.Errorf("flag name is required")
	}
	if !validValue(value) {
		return fmt.Errorf("invalid value %q for flag %s", value, key)
	}

	m.mu.Lock()
	m.flags[key] = value
	m.mu.Unlock()
	return nil
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	raw := m.Raw()
	out := make(map[string]bool, len(raw))
	for name, value := range raw {
		out[name] = evaluate(name, value, userID)
	}
	return out
}

func evaluate(name, value string, userID uint) bool {
	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := percentage(value)
	if !ok || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

func validValue(value string) bool {
	switch value {
	case "on", "true", "1", "off", "false", "0":
		return true
	}
	_, ok := percentage(value)
	return ok
}

func percentage(value string) (int, bool) {
	if !strings.HasSuffix(value, "%") {
		return 0, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil {
		return 0, false
	}
	return pct, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
