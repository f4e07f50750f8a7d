package store

import (
	"testing"
	"time"
)

func TestCanvasConfig_ResolvedDefaults(t *testing.T) {
	t.Setenv(envRelayURL, "")
	c := CanvasConfig{DragSettleMs: 250}.Resolved()
	if c.DragSettle() != 250*time.Millisecond {
		t.Fatalf("expected explicit drag settle kept; got %v", c.DragSettle())
	}
	if c.ResizeSettle() != time.Second || c.TaskLock() != time.Second || c.GroupLock() != 3*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Layout.Padding != 20 || c.Layout.Header != 60 || c.Rollover.From != "today" || c.Rollover.To != "overdue" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestCanvasConfig_RelayURLEnvOverride(t *testing.T) {
	t.Setenv(envRelayURL, "ws://example.test/ws")
	if got := (CanvasConfig{RelayURL: "ws://other/ws"}).Resolved().RelayURL; got != "ws://example.test/ws" {
		t.Fatalf("expected env override; got %q", got)
	}
}

func TestConfig_SaveLoadAndDeviceID(t *testing.T) {
	t.Setenv(envConfigDir, t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CurrentWorkspace != "" {
		t.Fatalf("expected empty config")
	}
	cfg.CurrentWorkspace = "work"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	id1, err := EnsureDeviceID()
	if err != nil {
		t.Fatalf("EnsureDeviceID: %v", err)
	}
	id2, err := EnsureDeviceID()
	if err != nil || id1 != id2 {
		t.Fatalf("expected stable device id; got %q %q (%v)", id1, id2, err)
	}
	back, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if back.CurrentWorkspace != "work" || back.DeviceID != id1 {
		t.Fatalf("unexpected persisted config: %+v", back)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:30")
	if err != nil || h != 7 || m != 30 {
		t.Fatalf("unexpected parse: %d %d %v", h, m, err)
	}
	for _, bad := range []string{"", "7", "24:00", "12:60", "aa:bb"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizeWorkspaceName(t *testing.T) {
	if n, err := NormalizeWorkspaceName("  work "); err != nil || n != "work" {
		t.Fatalf("unexpected: %q %v", n, err)
	}
	for _, bad := range []string{"", "a/b", "..", `a\b`} {
		if _, err := NormalizeWorkspaceName(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
