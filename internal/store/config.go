package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type GlobalConfig struct {
	CurrentWorkspace string `json:"currentWorkspace,omitempty"`

	// DeviceID is a stable per-machine identifier. It doubles as the realtime
	// replica id so a client can recognise echoes of its own writes.
	DeviceID string `json:"deviceId,omitempty"`

	Canvas CanvasConfig `json:"canvas"`
}

type CanvasConfig struct {
	DragSettleMs   int `json:"dragSettleMs,omitempty"`
	ResizeSettleMs int `json:"resizeSettleMs,omitempty"`
	TaskLockMs     int `json:"taskLockMs,omitempty"`
	GroupLockMs    int `json:"groupLockMs,omitempty"`

	// RelayURL is the websocket relay used by `sync listen`.
	RelayURL string `json:"relayUrl,omitempty"`

	Rollover RolloverConfig `json:"rollover"`
	Layout   LayoutConfig   `json:"layout"`
}

type RolloverConfig struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	// At is the local wall time (HH:MM) the rollover runs each day.
	At string `json:"at,omitempty"`
}

type LayoutConfig struct {
	Padding    float64 `json:"padding,omitempty"`
	Header     float64 `json:"header,omitempty"`
	RowSpacing float64 `json:"rowSpacing,omitempty"`
}

const (
	envConfigDir = "CLARITY_CANVAS_CONFIG_DIR"
	envRelayURL  = "CLARITY_CANVAS_RELAY_URL"
)

func DefaultCanvasConfig() CanvasConfig {
	return CanvasConfig{
		DragSettleMs:   3000,
		ResizeSettleMs: 1000,
		TaskLockMs:     1000,
		GroupLockMs:    3000,
		RelayURL:       "ws://127.0.0.1:8765/ws",
		Rollover:       RolloverConfig{From: "today", To: "overdue", At: "00:00"},
		Layout:         LayoutConfig{Padding: 20, Header: 60, RowSpacing: 70},
	}
}

// Resolved fills unset fields from DefaultCanvasConfig and applies env overrides.
func (c CanvasConfig) Resolved() CanvasConfig {
	d := DefaultCanvasConfig()
	if c.DragSettleMs <= 0 {
		c.DragSettleMs = d.DragSettleMs
	}
	if c.ResizeSettleMs <= 0 {
		c.ResizeSettleMs = d.ResizeSettleMs
	}
	if c.TaskLockMs <= 0 {
		c.TaskLockMs = d.TaskLockMs
	}
	if c.GroupLockMs <= 0 {
		c.GroupLockMs = d.GroupLockMs
	}
	if strings.TrimSpace(c.RelayURL) == "" {
		c.RelayURL = d.RelayURL
	}
	if v := strings.TrimSpace(os.Getenv(envRelayURL)); v != "" {
		c.RelayURL = v
	}
	if strings.TrimSpace(c.Rollover.From) == "" {
		c.Rollover.From = d.Rollover.From
	}
	if strings.TrimSpace(c.Rollover.To) == "" {
		c.Rollover.To = d.Rollover.To
	}
	if strings.TrimSpace(c.Rollover.At) == "" {
		c.Rollover.At = d.Rollover.At
	}
	if c.Layout.Padding <= 0 {
		c.Layout.Padding = d.Layout.Padding
	}
	if c.Layout.Header <= 0 {
		c.Layout.Header = d.Layout.Header
	}
	if c.Layout.RowSpacing <= 0 {
		c.Layout.RowSpacing = d.Layout.RowSpacing
	}
	return c
}

func (c CanvasConfig) DragSettle() time.Duration {
	return time.Duration(c.DragSettleMs) * time.Millisecond
}

func (c CanvasConfig) ResizeSettle() time.Duration {
	return time.Duration(c.ResizeSettleMs) * time.Millisecond
}

func (c CanvasConfig) TaskLock() time.Duration {
	return time.Duration(c.TaskLockMs) * time.Millisecond
}

func (c CanvasConfig) GroupLock() time.Duration {
	return time.Duration(c.GroupLockMs) * time.Millisecond
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hh, mm, nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.clarity-canvas).
	if v := strings.TrimSpace(os.Getenv(envConfigDir)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// Unique temp name + rename: the TUI and `sync listen` may write concurrently.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// EnsureDeviceID returns the configured device id, generating and saving one on first use.
func EnsureDeviceID() (string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}
	if id := strings.TrimSpace(cfg.DeviceID); id != "" {
		return id, nil
	}
	cfg.DeviceID = "dev-" + uuid.NewString()
	if err := SaveConfig(cfg); err != nil {
		return "", err
	}
	return cfg.DeviceID, nil
}

func NormalizeWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("workspace name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid workspace name: %q", name)
	}
	return name, nil
}

func ListWorkspaces() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	out := []string{}
	ents, err := os.ReadDir(filepath.Join(dir, "workspaces"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range ents {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
