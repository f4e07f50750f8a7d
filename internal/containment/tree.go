package containment

import "clarity-canvas/internal/model"

// Descendants returns the ids of every group nested (at any depth) under id.
func Descendants(id string, groups []model.Group) map[string]bool {
	children := map[string][]string{}
	for _, g := range groups {
		if g.ParentID != nil {
			children[*g.ParentID] = append(children[*g.ParentID], g.ID)
		}
	}
	out := map[string]bool{}
	var walk func(string)
	walk = func(pid string) {
		for _, ch := range children[pid] {
			if out[ch] || ch == id {
				continue
			}
			out[ch] = true
			walk(ch)
		}
	}
	walk(id)
	return out
}

// IsAncestor reports whether ancestorID appears on the parent chain of id.
// A malformed chain that loops is treated as not containing ancestorID.
func IsAncestor(ancestorID, id string, groups []model.Group) bool {
	parent := map[string]string{}
	for _, g := range groups {
		parent[g.ID] = model.ParentString(g.ParentID)
	}
	seen := map[string]bool{}
	cur := parent[id]
	for cur != "" && !seen[cur] {
		if cur == ancestorID {
			return true
		}
		seen[cur] = true
		cur = parent[cur]
	}
	return false
}

// Resolution compares a node's recorded parent with the resolved one.
type Resolution struct {
	ID       string           `json:"id"`
	Kind     model.EntityKind `json:"kind"`
	Recorded string           `json:"recorded"`
	Resolved string           `json:"resolved"`
	Changed  bool             `json:"changed"`
}

// ResolveAll projects containment for every group and task. Groups come first,
// in input order, then tasks.
func ResolveAll(groups []model.Group, tasks []model.Task) []Resolution {
	out := make([]Resolution, 0, len(groups)+len(tasks))
	for _, g := range groups {
		rec := model.ParentString(g.ParentID)
		res := ResolveGroupParent(g, groups)
		out = append(out, Resolution{ID: g.ID, Kind: model.EntityKindGroup, Recorded: rec, Resolved: res, Changed: rec != res})
	}
	for _, t := range tasks {
		rec := model.ParentString(t.ParentID)
		res := ResolveParent(NodeFromTask(t), groups)
		out = append(out, Resolution{ID: t.ID, Kind: model.EntityKindTask, Recorded: rec, Resolved: res, Changed: rec != res})
	}
	return out
}

// Members returns the tasks that currently resolve into groupID.
func Members(groupID string, tasks []model.Task, groups []model.Group) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if ResolveParent(NodeFromTask(t), groups) == groupID {
			out = append(out, t)
		}
	}
	return out
}
