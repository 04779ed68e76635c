// Package tree holds the pure parts of hierarchy maintenance: the
// materialized path codec and an id-indexed arena for assembling and
// walking node trees.
package tree

import (
	"fmt"
	"strings"

	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/uuid"
)

// Separator joins ancestor ids in a materialized path.
const Separator = ","

// Encode joins ancestor ids, root first, into a path string.
func Encode(ancestors []models.UUID) string {
	if len(ancestors) == 0 {
		return ""
	}
	parts := make([]string, len(ancestors))
	for i, id := range ancestors {
		parts[i] = string(id)
	}
	return strings.Join(parts, Separator)
}

// Decode splits a path back into ancestor ids, root first.
// The empty path decodes to no ancestors.
func Decode(path string) ([]models.UUID, error) {
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, Separator)
	ids := make([]models.UUID, 0, len(parts))
	for i, part := range parts {
		id, err := uuid.Canonical(part)
		if err != nil {
			return nil, fmt.Errorf("path element %d: %w", i, err)
		}
		ids = append(ids, models.UUID(id))
	}
	return ids, nil
}

// DepthOf returns the number of ancestors encoded in path, which is also the
// level of the node that owns the path.
func DepthOf(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}

// ChildPath returns the path of a direct child of parent.
func ChildPath(parent *models.Node) string {
	if parent.Path == "" {
		return string(parent.ID)
	}
	return parent.Path + Separator + string(parent.ID)
}

// Contains reports whether id appears among the ancestors encoded in path.
func Contains(path string, id models.UUID) bool {
	if path == "" || id == "" {
		return false
	}
	for _, part := range strings.Split(path, Separator) {
		if part == string(id) {
			return true
		}
	}
	return false
}

// Place sets node's parent, level and path for a position under parent.
// A nil parent makes the node a root.
func Place(node, parent *models.Node) {
	if parent == nil {
		node.ParentID = nil
		node.Level = 0
		node.Path = ""
		return
	}
	node.SetParent(parent.ID)
	node.Level = parent.Level + 1
	node.Path = ChildPath(parent)
}
