package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clarity-canvas/internal/model"
	"clarity-canvas/internal/realtime"
	"clarity-canvas/internal/store"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args)
}

func runCLIContext(t *testing.T, ctx context.Context, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.ExecuteContext(ctx)
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// isolateConfig keeps the global config (device id, current workspace) out of $HOME.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("CLARITY_CANVAS_CONFIG_DIR", t.TempDir())
	t.Setenv("CLARITY_CANVAS_RELAY_URL", "")
}

func mustRunJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("command failed: clarity-canvas %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, string(stderr), string(stdout))
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, string(stdout), args)
	}
	if _, ok := env["data"]; !ok {
		t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	return env
}

func dataMap(t *testing.T, env map[string]any) map[string]any {
	t.Helper()
	m, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object; got %#v", env["data"])
	}
	return m
}

func dataList(t *testing.T, env map[string]any) []any {
	t.Helper()
	xs, ok := env["data"].([]any)
	if !ok {
		t.Fatalf("expected data list; got %#v", env["data"])
	}
	return xs
}

func groupIDByRole(t *testing.T, dir, role string) string {
	t.Helper()
	for _, it := range dataList(t, mustRunJSON(t, "--dir", dir, "groups", "list")) {
		g := it.(map[string]any)
		if g["role"] == role {
			return g["id"].(string)
		}
	}
	t.Fatalf("no group with role %q", role)
	return ""
}

func TestInit_SeedsDefaultGroupsOnce(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()

	first := dataMap(t, mustRunJSON(t, "--dir", dir, "init"))
	if got := len(first["createdGroups"].([]any)); got != 3 {
		t.Fatalf("expected 3 seeded groups, got %d", got)
	}
	if _, err := os.Stat(first["sqlitePath"].(string)); err != nil {
		t.Fatalf("expected sqlite file: %v", err)
	}

	second := dataMap(t, mustRunJSON(t, "--dir", dir, "init"))
	if got := len(second["createdGroups"].([]any)); got != 0 {
		t.Fatalf("expected re-init to create nothing, got %d", got)
	}
	if got := len(dataList(t, mustRunJSON(t, "--dir", dir, "groups", "list"))); got != 3 {
		t.Fatalf("expected 3 groups, got %d", got)
	}
}

func TestTasksCreate_ResolvesParentFromPosition(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	todayID := groupIDByRole(t, dir, "today")

	task := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "create", "--title", "Write report", "--x", "450", "--y", "100"))
	if task["parentId"] != todayID {
		t.Fatalf("expected parent %s, got %#v", todayID, task["parentId"])
	}
	taskID := task["id"].(string)

	// Off every group: canvas root.
	moved := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "move", taskID, "--x", "2000", "--y", "2000"))
	if moved["changed"] != true || moved["prevParentId"] != todayID {
		t.Fatalf("unexpected move result: %#v", moved)
	}
	if _, ok := moved["task"].(map[string]any)["parentId"]; ok {
		t.Fatalf("expected no parent after moving off-canvas groups: %#v", moved["task"])
	}

	members := dataList(t, mustRunJSON(t, "--dir", dir, "tasks", "list", "--group", "today"))
	if len(members) != 0 {
		t.Fatalf("expected Today to be empty, got %d", len(members))
	}
}

func TestRollover_MovesTodayIntoOverdue(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	overdueID := groupIDByRole(t, dir, "overdue")

	a := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "create", "--title", "A", "--x", "450", "--y", "100"))
	// Inbox tasks are never rolled over, even when they sit in Today.
	mustRunJSON(t, "--dir", dir, "tasks", "create", "--title", "B", "--x", "450", "--y", "300", "--inbox")

	res := dataMap(t, mustRunJSON(t, "--dir", dir, "rollover"))
	if res["reason"] != "success" || res["movedCount"] != float64(1) {
		t.Fatalf("unexpected rollover result: %#v", res)
	}

	shown := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "show", a["id"].(string)))
	task := shown["task"].(map[string]any)
	if task["parentId"] != overdueID {
		t.Fatalf("expected parent %s, got %#v", overdueID, task["parentId"])
	}
	pos := task["position"].(map[string]any)
	if pos["x"] != float64(820) || pos["y"] != float64(80) {
		t.Fatalf("unexpected slot: %#v", pos)
	}

	again := dataMap(t, mustRunJSON(t, "--dir", dir, "rollover"))
	if again["reason"] != "no-tasks" {
		t.Fatalf("expected no-tasks on second pass, got %#v", again)
	}
}

func TestRollover_MissingGroup(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")

	res := dataMap(t, mustRunJSON(t, "--dir", dir, "rollover", "--from", "today", "--to", "someday"))
	if res["reason"] != "no-someday-group" {
		t.Fatalf("unexpected reason: %#v", res["reason"])
	}
}

func TestGroupsMove_CarriesMembers(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	todayID := groupIDByRole(t, dir, "today")
	task := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "create", "--title", "A", "--x", "450", "--y", "100"))

	res := dataMap(t, mustRunJSON(t, "--dir", dir, "groups", "move", todayID, "--x", "400", "--y", "1000"))
	carried := res["carried"].([]any)
	if len(carried) != 1 || carried[0] != task["id"] {
		t.Fatalf("expected task to be carried, got %#v", carried)
	}

	shown := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "show", task["id"].(string)))
	pos := shown["task"].(map[string]any)["position"].(map[string]any)
	if pos["x"] != float64(450) || pos["y"] != float64(1100) {
		t.Fatalf("unexpected carried position: %#v", pos)
	}
	if shown["resolvedParent"] != todayID {
		t.Fatalf("expected task to still resolve into Today, got %#v", shown["resolvedParent"])
	}
}

func TestGroupsReparent_RejectsCycle(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	todayID := groupIDByRole(t, dir, "today")

	_, stderr, err := runCLI(t, []string{"--dir", dir, "groups", "reparent", todayID, "--parent", todayID})
	if err == nil {
		t.Fatalf("expected self-reparent to fail")
	}
	if !strings.Contains(string(stderr), "cycle") {
		t.Fatalf("expected cycle error, got stderr: %s", stderr)
	}

	_, _, err = runCLI(t, []string{"--dir", dir, "groups", "reparent", todayID})
	if err == nil {
		t.Fatalf("expected missing --parent/--root to fail")
	}
}

func TestGroupsResize_KeepsUnsetFields(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	todayID := groupIDByRole(t, dir, "today")

	res := dataMap(t, mustRunJSON(t, "--dir", dir, "groups", "resize", todayID, "--width", "500"))
	b := res["group"].(map[string]any)["bounds"].(map[string]any)
	if b["x"] != float64(400) || b["width"] != float64(500) || b["height"] != float64(600) {
		t.Fatalf("unexpected bounds: %#v", b)
	}

	if _, _, err := runCLI(t, []string{"--dir", dir, "groups", "resize", todayID, "--width", "-1"}); err == nil {
		t.Fatalf("expected negative width to be rejected")
	}
}

func TestEvents_LogsLocalWrites(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	task := dataMap(t, mustRunJSON(t, "--dir", dir, "tasks", "create", "--title", "A", "--x", "450", "--y", "100"))
	id := task["id"].(string)
	mustRunJSON(t, "--dir", dir, "tasks", "move", id, "--x", "460", "--y", "100")

	evs := dataList(t, mustRunJSON(t, "--dir", dir, "events", "list", "--entity", id))
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d: %#v", len(evs), evs)
	}
	types := map[string]bool{}
	for _, it := range evs {
		ev := it.(map[string]any)
		types[ev["type"].(string)] = true
		if ev["origin"] != store.OriginLocal {
			t.Fatalf("expected local origin, got %#v", ev["origin"])
		}
	}
	if !types[string(realtime.TaskUpsert)] || !types[string(realtime.TaskPosition)] {
		t.Fatalf("unexpected event types: %#v", types)
	}

	limited := dataList(t, mustRunJSON(t, "--dir", dir, "events", "list", "--limit", "1"))
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestCanvasExportImport_RoundTrip(t *testing.T) {
	isolateConfig(t)
	src := t.TempDir()
	mustRunJSON(t, "--dir", src, "init")
	mustRunJSON(t, "--dir", src, "tasks", "create", "--title", "A", "--x", "450", "--y", "100")

	file := filepath.Join(t.TempDir(), "canvas.yaml")
	mustRunJSON(t, "--dir", src, "canvas", "export", "--out", file)
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(b), "groups:") || !strings.Contains(string(b), "title: A") {
		t.Fatalf("unexpected export:\n%s", b)
	}

	dst := t.TempDir()
	res := dataMap(t, mustRunJSON(t, "--dir", dst, "canvas", "import", file))
	if res["groups"] != float64(3) || res["tasks"] != float64(1) {
		t.Fatalf("unexpected import result: %#v", res)
	}
	if got := len(dataList(t, mustRunJSON(t, "--dir", dst, "tasks", "list"))); got != 1 {
		t.Fatalf("expected 1 task after import, got %d", got)
	}
	if got := dataList(t, mustRunJSON(t, "--dir", dst, "canvas", "resolve", "--changed")); len(got) != 0 {
		t.Fatalf("expected a consistent canvas, got %#v", got)
	}
}

func TestCanvasImport_RejectsCycle(t *testing.T) {
	isolateConfig(t)
	doc := `
groups:
  - id: grp-a
    name: A
    parentId: grp-b
    bounds: {x: 0, y: 0, width: 100, height: 100}
  - id: grp-b
    name: B
    parentId: grp-a
    bounds: {x: 0, y: 0, width: 50, height: 50}
`
	file := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(file, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := runCLI(t, []string{"--dir", t.TempDir(), "canvas", "import", file}); err == nil {
		t.Fatalf("expected cyclic snapshot to be rejected")
	}
}

func TestFormatYAML(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")

	stdout, stderr, err := runCLI(t, []string{"--dir", dir, "--format", "yaml", "groups", "list"})
	if err != nil {
		t.Fatalf("groups list --format yaml: %v\n%s", err, stderr)
	}
	out := string(stdout)
	if !strings.HasPrefix(out, "data:") || !strings.Contains(out, "role: today") {
		t.Fatalf("unexpected yaml:\n%s", out)
	}
}

func TestSyncListen_AppliesRelayEvents(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	todayID := groupIDByRole(t, dir, "today")

	srv := realtime.NewServer(nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Shutdown()
		ts.Close()
	})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	listenCtx, stopListen := context.WithCancel(ctx)

	type result struct {
		stdout, stderr []byte
		err            error
	}
	done := make(chan result, 1)
	go func() {
		out, errOut, err := runCLIContext(t, listenCtx, []string{"--dir", dir, "sync", "listen", "--url", url, "--debounce", "10ms"})
		done <- result{out, errOut, err}
	}()

	peer, err := realtime.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer peer.Close()
	go func() { _ = peer.Run(ctx, func(realtime.Event) {}) }()

	waitFor(t, func() bool { return srv.Hub().Subscribers() == 2 })

	ev := realtime.NewEvent("replica-peer", realtime.GroupBounds, todayID, time.Now())
	ev.Bounds = &model.Rect{Point: model.Point{X: 400, Y: 0}, Size: model.Size{Width: 350, Height: 600}}
	if err := peer.Publish(ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	s := store.Store{Dir: dir}
	waitFor(t, func() bool {
		db, err := s.Load()
		if err != nil {
			return false
		}
		g, ok := db.FindGroup(todayID)
		return ok && g.Bounds.Width == 350
	})

	stopListen()
	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		t.Fatalf("sync listen did not stop")
	}
	if res.err != nil {
		t.Fatalf("sync listen: %v\nstderr:\n%s", res.err, res.stderr)
	}
	var env map[string]any
	if err := json.Unmarshal(res.stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, res.stdout)
	}
	stats := dataMap(t, env)["stats"].(map[string]any)
	if stats["accepted"] != float64(1) {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestPublishCanvas_WritesMarkdown(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	mustRunJSON(t, "--dir", dir, "init")
	mustRunJSON(t, "--dir", dir, "tasks", "create", "--title", "Write report", "--x", "450", "--y", "100")

	to := t.TempDir()
	res := dataMap(t, mustRunJSON(t, "--dir", dir, "publish", "canvas", "--to", to))
	if got := len(res["written"].([]any)); got != 4 {
		t.Fatalf("expected index + 3 group pages, got %d", got)
	}
	b, err := os.ReadFile(filepath.Join(to, "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(b), "[Today](groups/") || !strings.Contains(string(b), "(1)") {
		t.Fatalf("unexpected index:\n%s", b)
	}

	if _, _, err := runCLI(t, []string{"--dir", dir, "publish", "group", "today", "--to", to}); err == nil {
		t.Fatalf("expected existing page to need --overwrite")
	}
	mustRunJSON(t, "--dir", dir, "publish", "group", "today", "--to", to, "--overwrite")
}

func TestDocs(t *testing.T) {
	isolateConfig(t)
	topics := dataMap(t, mustRunJSON(t, "docs"))["topics"].([]any)
	if len(topics) == 0 {
		t.Fatalf("expected docs topics")
	}
	if first := topics[0].(map[string]any); first["topic"] != "canvas" || first["title"] != "Canvas" {
		t.Fatalf("unexpected first topic %v", first)
	}

	out := dataMap(t, mustRunJSON(t, "docs", "canvas", "--section", "Inspecting"))
	if md, _ := out["markdown"].(string); !strings.HasPrefix(md, "## Inspecting") {
		t.Fatalf("unexpected section body %q", md)
	}
	if _, _, err := runCLI(t, []string{"docs", "canvas", "--section", "nope"}); err == nil {
		t.Fatalf("expected unknown section to fail")
	}

	stdout, _, err := runCLI(t, []string{"docs", "rollover", "--raw"})
	if err != nil {
		t.Fatalf("docs rollover: %v", err)
	}
	if !strings.HasPrefix(string(stdout), "# Rollover") {
		t.Fatalf("unexpected raw docs:\n%s", stdout)
	}

	if _, _, err := runCLI(t, []string{"docs", "nope"}); err == nil {
		t.Fatalf("expected unknown topic to fail")
	}
}
