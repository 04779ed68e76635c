package tree

import (
	"fmt"

	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// Violation describes a node whose stored position breaks a tree invariant.
type Violation struct {
	NodeID  models.UUID `json:"node_id"`
	Problem string      `json:"problem"`
}

// Check compares every node's stored level and path with its parent's and
// reports the mismatches. Nothing is modified.
func (a *Arena) Check() []Violation {
	var out []Violation

	stuck := make(map[models.UUID]bool)
	for _, n := range a.Unreachable() {
		stuck[n.ID] = true
		out = append(out, Violation{NodeID: n.ID, Problem: "parent chain forms a cycle"})
	}

	for _, id := range a.order {
		n := a.nodes[id]
		if stuck[id] {
			continue
		}

		var parent *models.Node
		if key := n.ParentKey(); key != "" {
			p, ok := a.nodes[key]
			if !ok {
				out = append(out, Violation{NodeID: id, Problem: fmt.Sprintf("parent %s does not exist", key)})
				continue
			}
			parent = p
		}

		wantLevel, wantPath := 0, ""
		if parent != nil {
			wantLevel, wantPath = parent.Level+1, ChildPath(parent)
		}
		if n.Level != wantLevel {
			out = append(out, Violation{NodeID: id, Problem: fmt.Sprintf("level is %d, want %d", n.Level, wantLevel)})
		}
		if n.Path != wantPath {
			out = append(out, Violation{NodeID: id, Problem: fmt.Sprintf("path is %q, want %q", n.Path, wantPath)})
		}
	}
	return out
}
