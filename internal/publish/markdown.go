package publish

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/store"
)

type RenderOptions struct {
	IncludeDone bool
}

// RenderGroupMarkdown renders one group page: meta, nested groups and the
// tasks that resolve into it, top to bottom.
func RenderGroupMarkdown(db *store.DB, groupID string, opt RenderOptions) (string, error) {
	if db == nil {
		return "", fmt.Errorf("missing db")
	}
	g, ok := db.FindGroup(strings.TrimSpace(groupID))
	if !ok {
		return "", fmt.Errorf("group not found: %s", groupID)
	}
	groups := db.Groups()
	tree := buildGroupTree(groups)

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + groupTitle(g))
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn("- ID: " + g.ID)
	if strings.TrimSpace(g.Role) != "" {
		writeLn("- Role: " + g.Role)
	}
	if pid := containment.ResolveGroupParent(g, groups); pid != "" {
		if p, ok := db.FindGroup(pid); ok {
			writeLn(fmt.Sprintf("- Parent: [%s](%s.md)", groupTitle(p), p.ID))
		}
	}
	writeLn(fmt.Sprintf("- Bounds: %g,%g %gx%g", g.Bounds.X, g.Bounds.Y, g.Bounds.Width, g.Bounds.Height))
	writeLn("")

	if kids := tree.Children[g.ID]; len(kids) > 0 {
		writeLn("## Groups")
		writeLn("")
		for _, k := range kids {
			writeLn(fmt.Sprintf("- [%s](%s.md)", groupTitle(k), k.ID))
		}
		writeLn("")
	}

	writeLn("## Tasks")
	writeLn("")
	tasks := visibleTasks(containment.Members(g.ID, db.Tasks(), groups), opt)
	if len(tasks) == 0 {
		writeLn("_No tasks._")
	}
	for _, t := range tasks {
		writeLn(taskLine(t))
	}

	return buf.String(), nil
}

// RenderCanvasIndexMarkdown renders the group tree with task counts, followed by
// the tasks that sit on the bare canvas.
func RenderCanvasIndexMarkdown(db *store.DB, title string, opt RenderOptions) (string, error) {
	if db == nil {
		return "", fmt.Errorf("missing db")
	}
	groups := db.Groups()
	tasks := db.Tasks()
	tree := buildGroupTree(groups)

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	if strings.TrimSpace(title) == "" {
		title = "Canvas"
	}
	writeLn("# " + strings.TrimSpace(title))
	writeLn("")
	writeLn("## Groups")
	writeLn("")
	if len(tree.Roots) == 0 {
		writeLn("_No groups._")
	}
	var walk func(g model.Group, depth int)
	walk = func(g model.Group, depth int) {
		n := len(visibleTasks(containment.Members(g.ID, tasks, groups), opt))
		fmt.Fprintf(&buf, "%s- [%s](groups/%s.md) (%d)\n", strings.Repeat("  ", depth), groupTitle(g), g.ID, n)
		for _, k := range tree.Children[g.ID] {
			walk(k, depth+1)
		}
	}
	for _, r := range tree.Roots {
		walk(r, 0)
	}

	loose := visibleTasks(containment.Members("", tasks, groups), opt)
	if len(loose) > 0 {
		writeLn("")
		writeLn("## Ungrouped")
		writeLn("")
		for _, t := range loose {
			writeLn(taskLine(t))
		}
	}
	return buf.String(), nil
}

type groupTree struct {
	Roots    []model.Group
	Children map[string][]model.Group
}

// buildGroupTree nests groups by resolved parent. Siblings are ordered top to
// bottom, then left to right.
func buildGroupTree(groups []model.Group) groupTree {
	tree := groupTree{Children: map[string][]model.Group{}}
	for _, g := range groups {
		pid := containment.ResolveGroupParent(g, groups)
		if pid == "" {
			tree.Roots = append(tree.Roots, g)
			continue
		}
		tree.Children[pid] = append(tree.Children[pid], g)
	}
	byPosition := func(xs []model.Group) {
		sort.SliceStable(xs, func(i, j int) bool {
			if xs[i].Bounds.Y != xs[j].Bounds.Y {
				return xs[i].Bounds.Y < xs[j].Bounds.Y
			}
			return xs[i].Bounds.X < xs[j].Bounds.X
		})
	}
	byPosition(tree.Roots)
	for _, kids := range tree.Children {
		byPosition(kids)
	}
	return tree
}

func visibleTasks(tasks []model.Task, opt RenderOptions) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Done && !opt.IncludeDone {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position.Y != out[j].Position.Y {
			return out[i].Position.Y < out[j].Position.Y
		}
		return out[i].Position.X < out[j].Position.X
	})
	return out
}

func taskLine(t model.Task) string {
	box := "[ ]"
	if t.Done {
		box = "[x]"
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = t.ID
	}
	suffix := ""
	if t.IsInInbox {
		suffix = " (inbox)"
	}
	return fmt.Sprintf("- %s %s%s", box, title, suffix)
}

func groupTitle(g model.Group) string {
	if name := strings.TrimSpace(g.Name); name != "" {
		return name
	}
	return g.ID
}
