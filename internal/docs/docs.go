// Package docs embeds the help pages shown by `clarity-canvas docs`. Each page
// is one markdown file; its first heading is the title and its `##` headings
// are the sections.
package docs

import (
	"bufio"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed content/*.md
var contentFS embed.FS

type Page struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Sections []string `json:"sections,omitempty"`
	Markdown string   `json:"markdown,omitempty"`
}

// List returns every page without its body, ordered by topic.
func List() []Page {
	entries, err := fs.Glob(contentFS, "content/*.md")
	if err != nil {
		return nil
	}
	pages := make([]Page, 0, len(entries))
	for _, p := range entries {
		page, ok := Lookup(strings.TrimSuffix(path.Base(p), ".md"))
		if !ok {
			continue
		}
		page.Markdown = ""
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Topic < pages[j].Topic })
	return pages
}

// Lookup finds a page by topic name, case-insensitively.
func Lookup(topic string) (Page, bool) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" || strings.ContainsAny(topic, `/\.`) {
		return Page{}, false
	}
	b, err := contentFS.ReadFile(path.Join("content", topic+".md"))
	if err != nil {
		return Page{}, false
	}
	page := Page{Topic: topic, Title: topic, Markdown: string(b)}
	sc := bufio.NewScanner(strings.NewReader(page.Markdown))
	first := true
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "## "):
			page.Sections = append(page.Sections, strings.TrimSpace(line[3:]))
		case first && strings.HasPrefix(line, "# "):
			page.Title = strings.TrimSpace(line[2:])
		}
		if strings.TrimSpace(line) != "" {
			first = false
		}
	}
	return page, true
}

// Section returns the body under the `## name` heading, heading included, up
// to the next section.
func (p Page) Section(name string) (string, bool) {
	name = strings.TrimSpace(name)
	var b strings.Builder
	in := false
	for _, line := range strings.SplitAfter(p.Markdown, "\n") {
		if strings.HasPrefix(line, "## ") {
			if in {
				break
			}
			in = strings.EqualFold(strings.TrimSpace(line[3:]), name)
		}
		if in {
			b.WriteString(line)
		}
	}
	if !in {
		return "", false
	}
	return strings.TrimRight(b.String(), "\n") + "\n", true
}
