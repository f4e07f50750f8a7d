package docs

import (
	"strings"
	"testing"
)

func TestList_TitlesAndOrder(t *testing.T) {
	pages := List()
	var topics []string
	for _, p := range pages {
		topics = append(topics, p.Topic)
		if p.Markdown != "" {
			t.Fatalf("List must not carry bodies: %s", p.Topic)
		}
	}
	if strings.Join(topics, ",") != "canvas,gestures,rollover,sync" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if pages[0].Title != "Canvas" || strings.Join(pages[0].Sections, ",") != "Containment,Inspecting" {
		t.Fatalf("unexpected canvas page %+v", pages[0])
	}
}

func TestLookup(t *testing.T) {
	p, ok := Lookup(" Rollover ")
	if !ok || p.Title != "Rollover" || !strings.HasPrefix(p.Markdown, "# Rollover") {
		t.Fatalf("expected rollover page, got ok=%v %+v", ok, p)
	}
	for _, bad := range []string{"", "nope", "../docs", "content/sync", "sync.md"} {
		if _, ok := Lookup(bad); ok {
			t.Fatalf("expected %q to be unknown", bad)
		}
	}
}

func TestSection(t *testing.T) {
	p, _ := Lookup("canvas")
	body, ok := p.Section("containment")
	if !ok || !strings.HasPrefix(body, "## Containment") {
		t.Fatalf("expected containment section, got ok=%v %q", ok, body)
	}
	if strings.Contains(body, "## Inspecting") || !strings.Contains(body, "smallest group") {
		t.Fatalf("section bled into its neighbour:\n%s", body)
	}
	if _, ok := p.Section("missing"); ok {
		t.Fatalf("expected unknown section")
	}
}
