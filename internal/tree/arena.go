package tree

import (
	"sort"

	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// Arena indexes the nodes of one owner and kind by id. Children are always
// derived from parent ids held in the arena, never from stored references.
type Arena struct {
	nodes    map[models.UUID]*models.Node
	children map[models.UUID][]models.UUID
	order    []models.UUID
}

// NewArena indexes nodes. Input order is kept for stable traversal; a parent
// id that is not in the set is treated as a root reference.
func NewArena(nodes []*models.Node) *Arena {
	a := &Arena{
		nodes:    make(map[models.UUID]*models.Node, len(nodes)),
		children: make(map[models.UUID][]models.UUID),
		order:    make([]models.UUID, 0, len(nodes)),
	}
	for _, n := range nodes {
		a.nodes[n.ID] = n
		a.order = append(a.order, n.ID)
	}
	for _, id := range a.order {
		parent := a.nodes[id].ParentKey()
		if _, ok := a.nodes[parent]; !ok {
			parent = ""
		}
		a.children[parent] = append(a.children[parent], id)
	}
	return a
}

// Len returns the number of nodes in the arena.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Get returns the node with id.
func (a *Arena) Get(id models.UUID) (*models.Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// ChildrenOf returns the direct children of id. Use "" for roots.
func (a *Arena) ChildrenOf(id models.UUID) []*models.Node {
	ids := a.children[id]
	out := make([]*models.Node, 0, len(ids))
	for _, cid := range ids {
		out = append(out, a.nodes[cid])
	}
	return out
}

// Descendants returns every node below id in depth-first pre-order.
// Each node is visited once even if the stored parent graph is cyclic.
func (a *Arena) Descendants(id models.UUID) []*models.Node {
	var out []*models.Node
	seen := map[models.UUID]bool{id: true}
	var walk func(models.UUID)
	walk = func(parent models.UUID) {
		for _, cid := range a.children[parent] {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, a.nodes[cid])
			walk(cid)
		}
	}
	walk(id)
	return out
}

// IsDescendant reports whether candidate lies in the subtree below id.
func (a *Arena) IsDescendant(id, candidate models.UUID) bool {
	for _, n := range a.Descendants(id) {
		if n.ID == candidate {
			return true
		}
	}
	return false
}

// Reflow re-derives level and path for every descendant of id from its
// (already placed) parent, and returns the nodes whose position changed.
func (a *Arena) Reflow(id models.UUID) []*models.Node {
	var changed []*models.Node
	seen := map[models.UUID]bool{id: true}
	var walk func(parent *models.Node)
	walk = func(parent *models.Node) {
		for _, cid := range a.children[parent.ID] {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			child := a.nodes[cid]
			level, path := child.Level, child.Path
			Place(child, parent)
			if child.Level != level || child.Path != path {
				changed = append(changed, child)
			}
			walk(child)
		}
	}
	if root, ok := a.nodes[id]; ok {
		walk(root)
	}
	return changed
}

// Rebuild re-derives level and path for the whole arena starting at the
// roots, and returns the nodes whose stored position was wrong. Nodes caught
// in a parent cycle are detached to root, one per cycle.
func (a *Arena) Rebuild() []*models.Node {
	var changed []*models.Node
	place := func(root *models.Node) {
		level, path, wasRoot := root.Level, root.Path, root.ParentID == nil
		Place(root, nil)
		if root.Level != level || root.Path != path || !wasRoot {
			changed = append(changed, root)
		}
		changed = append(changed, a.Reflow(root.ID)...)
	}
	for _, root := range a.ChildrenOf("") {
		place(root)
	}
	for {
		stuck := a.Unreachable()
		if len(stuck) == 0 {
			break
		}
		a.detach(stuck[0].ID)
		place(stuck[0])
	}
	return changed
}

// detach moves id under the root bucket of the adjacency index.
func (a *Arena) detach(id models.UUID) {
	parent := a.nodes[id].ParentKey()
	siblings := a.children[parent]
	for i, cid := range siblings {
		if cid == id {
			a.children[parent] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	a.children[""] = append(a.children[""], id)
}

// Assemble builds the nested tree: every node reachable from a root gets its
// Children slice filled from the arena and the roots are returned. Runs in O(n).
func (a *Arena) Assemble() []*models.Node {
	for _, id := range a.order {
		a.nodes[id].Children = nil
	}
	seen := make(map[models.UUID]bool, len(a.nodes))
	var attach func(n *models.Node)
	attach = func(n *models.Node) {
		seen[n.ID] = true
		for _, cid := range a.children[n.ID] {
			if seen[cid] {
				continue
			}
			child := a.nodes[cid]
			n.Children = append(n.Children, child)
			attach(child)
		}
		sortByName(n.Children)
	}
	roots := a.ChildrenOf("")
	for _, root := range roots {
		attach(root)
	}
	sortByName(roots)
	return roots
}

// Unreachable returns nodes that cannot be reached from any root, which only
// happens when stored parent ids form a cycle.
func (a *Arena) Unreachable() []*models.Node {
	reached := make(map[models.UUID]bool, len(a.nodes))
	for _, root := range a.ChildrenOf("") {
		reached[root.ID] = true
		for _, d := range a.Descendants(root.ID) {
			reached[d.ID] = true
		}
	}
	var out []*models.Node
	for _, id := range a.order {
		if !reached[id] {
			out = append(out, a.nodes[id])
		}
	}
	return out
}

func sortByName(nodes []*models.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Name < nodes[j].Name
	})
}
