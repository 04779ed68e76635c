package services

import (
	"context"
	"strings"

	"github.com/kimhsiao/homeinv/backend/internal/db"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/tree"
)

// TreeService maintains level and path for the space and entity trees.
// Every structural change, including its cascade to descendants, runs in a
// single transaction.
type TreeService struct {
	repo *db.Repository
}

// NewTreeService creates a new TreeService.
func NewTreeService(repo *db.Repository) *TreeService {
	return &TreeService{repo: repo}
}

// Insert creates node under parentID, or as a root when parentID is nil.
// The parent must exist and belong to the same owner.
func (s *TreeService) Insert(ctx context.Context, ownerID string, node *models.Node, parentID *models.UUID) (*models.Node, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(node.Kind); err != nil {
		return nil, err
	}
	node.Name = strings.TrimSpace(node.Name)
	if node.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	node.OwnerID = ownerID

	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		if err := s.place(ctx, tx, node, parentID); err != nil {
			return err
		}
		return storeErr(tx.CreateNode(ctx, node), string(node.Kind), node.ID)
	})
	if err != nil {
		return nil, err
	}

	logging.Info("node created", map[string]interface{}{
		"kind":    node.Kind,
		"node_id": node.ID,
		"level":   node.Level,
	})
	return node, nil
}

// place positions node under parentID using tx. Used by every insert path.
func (s *TreeService) place(ctx context.Context, tx *db.Repository, node *models.Node, parentID *models.UUID) error {
	if parentID == nil || *parentID == "" {
		tree.Place(node, nil)
		return nil
	}
	parent, err := tx.GetNode(ctx, node.Kind, node.OwnerID, *parentID)
	if err != nil {
		return storeErr(err, "parent "+string(node.Kind), *parentID)
	}
	tree.Place(node, parent)
	return nil
}

// Move reparents a node, or makes it a root when newParentID is nil, and
// re-derives level and path for its whole subtree. Moving a node under itself
// or one of its descendants fails with Conflict and changes nothing.
func (s *TreeService) Move(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID, newParentID *models.UUID) (*models.Node, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}

	var moved *models.Node
	var cascaded int
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		nodes, err := tx.ListNodes(ctx, kind, ownerID)
		if err != nil {
			return storeErr(err, string(kind), id)
		}
		arena := tree.NewArena(nodes)

		node, ok := arena.Get(id)
		if !ok {
			return apperrors.NotFound("%s %s not found", kind, id)
		}

		var parent *models.Node
		if newParentID != nil && *newParentID != "" {
			if *newParentID == id {
				return apperrors.Conflict("cannot move %s %s under itself", kind, id)
			}
			if parent, ok = arena.Get(*newParentID); !ok {
				return apperrors.NotFound("parent %s %s not found", kind, *newParentID)
			}
			if arena.IsDescendant(id, parent.ID) {
				return apperrors.Conflict("cannot move %s %s under its descendant %s", kind, id, parent.ID)
			}
		}

		tree.Place(node, parent)
		if err := tx.UpdateNodePosition(ctx, node); err != nil {
			return storeErr(err, string(kind), id)
		}

		changed := arena.Reflow(id)
		for _, d := range changed {
			if err := tx.UpdateNodePosition(ctx, d); err != nil {
				return storeErr(err, string(kind), d.ID)
			}
		}
		moved, cascaded = node, len(changed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("node moved", map[string]interface{}{
		"kind":        kind,
		"node_id":     id,
		"parent_id":   moved.ParentKey(),
		"descendants": cascaded,
	})
	return moved, nil
}

// Delete removes a node together with its tag links and image references.
// A space with children is refused with Conflict. An entity's direct
// children become roots and their subtrees are re-derived.
func (s *TreeService) Delete(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := requireKind(kind); err != nil {
		return err
	}

	var released []string
	var reparented int
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		if _, err := tx.GetNode(ctx, kind, ownerID, id); err != nil {
			return storeErr(err, string(kind), id)
		}

		if kind.CascadesOnDelete() {
			n, err := s.reparentChildren(ctx, tx, kind, ownerID, id)
			if err != nil {
				return err
			}
			reparented = n
		} else {
			count, err := tx.CountChildren(ctx, kind, ownerID, id)
			if err != nil {
				return storeErr(err, string(kind), id)
			}
			if count > 0 {
				return apperrors.Conflict("%s %s has %d children", kind, id, count)
			}
			if _, err := tx.ClearItemSpace(ctx, ownerID, id); err != nil {
				return storeErr(err, string(kind), id)
			}
		}

		if err := tx.DetachNodeTags(ctx, kind, id); err != nil {
			return storeErr(err, string(kind), id)
		}
		paths, err := tx.DeleteNodeImages(ctx, kind, id)
		if err != nil {
			return storeErr(err, string(kind), id)
		}
		released = paths
		return storeErr(tx.DeleteNode(ctx, kind, ownerID, id), string(kind), id)
	})
	if err != nil {
		return err
	}

	logging.Info("node deleted", map[string]interface{}{
		"kind":            kind,
		"node_id":         id,
		"reparented":      reparented,
		"released_images": released,
	})
	return nil
}

// reparentChildren makes every direct child of id a root and re-derives the
// subtrees below them. Returns the number of direct children moved.
func (s *TreeService) reparentChildren(ctx context.Context, tx *db.Repository, kind models.NodeKind, ownerID string, id models.UUID) (int, error) {
	nodes, err := tx.ListNodes(ctx, kind, ownerID)
	if err != nil {
		return 0, storeErr(err, string(kind), id)
	}
	arena := tree.NewArena(nodes)

	children := arena.ChildrenOf(id)
	for _, child := range children {
		tree.Place(child, nil)
		if err := tx.UpdateNodePosition(ctx, child); err != nil {
			return 0, storeErr(err, string(kind), child.ID)
		}
		for _, d := range arena.Reflow(child.ID) {
			if err := tx.UpdateNodePosition(ctx, d); err != nil {
				return 0, storeErr(err, string(kind), d.ID)
			}
		}
	}
	return len(children), nil
}

// GetTree returns the owner's forest of the given kind with children and tag
// names filled in. Roots and siblings are ordered by name.
func (s *TreeService) GetTree(ctx context.Context, ownerID string, kind models.NodeKind) ([]*models.Node, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}

	nodes, err := s.repo.ListNodes(ctx, kind, ownerID)
	if err != nil {
		return nil, storeErr(err, string(kind), "")
	}
	if len(nodes) == 0 {
		return []*models.Node{}, nil
	}

	ids := make([]models.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	tags, err := s.repo.TagNamesFor(ctx, kind, ids)
	if err != nil {
		return nil, storeErr(err, "tag", "")
	}
	for _, n := range nodes {
		n.Tags = tags[n.ID]
	}

	return tree.NewArena(nodes).Assemble(), nil
}

// AncestorPath returns the ancestors of a node, root first, decoded from the
// node's stored path with a single batched lookup.
func (s *TreeService) AncestorPath(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID) ([]*models.Node, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}

	node, err := s.repo.GetNode(ctx, kind, ownerID, id)
	if err != nil {
		return nil, storeErr(err, string(kind), id)
	}
	ids, err := tree.Decode(node.Path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "stored path is corrupt", err)
	}
	if len(ids) == 0 {
		return []*models.Node{}, nil
	}

	found, err := s.repo.GetNodesByIDs(ctx, kind, ownerID, ids)
	if err != nil {
		return nil, storeErr(err, string(kind), id)
	}
	byID := make(map[models.UUID]*models.Node, len(found))
	for _, n := range found {
		byID[n.ID] = n
	}

	ancestors := make([]*models.Node, 0, len(ids))
	for _, aid := range ids {
		a, ok := byID[aid]
		if !ok {
			return nil, apperrors.New(apperrors.ErrInternal, "stored path references missing ancestor "+string(aid))
		}
		ancestors = append(ancestors, a)
	}
	return ancestors, nil
}

// Rename changes the name and description of a node without touching its
// position.
func (s *TreeService) Rename(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID, name, description string) (*models.Node, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	node, err := s.repo.GetNode(ctx, kind, ownerID, id)
	if err != nil {
		return nil, storeErr(err, string(kind), id)
	}
	node.Name = name
	node.Description = description
	if err := s.repo.UpdateNodeDetails(ctx, node); err != nil {
		return nil, storeErr(err, string(kind), id)
	}
	return node, nil
}

// Rebuild recomputes every level and path of the owner's tree from parent
// ids and persists the repairs. Nodes in a parent cycle are detached to root.
// Returns the number of nodes rewritten.
func (s *TreeService) Rebuild(ctx context.Context, ownerID string, kind models.NodeKind) (int, error) {
	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}
	if err := requireKind(kind); err != nil {
		return 0, err
	}

	var repaired int
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		nodes, err := tx.ListNodes(ctx, kind, ownerID)
		if err != nil {
			return storeErr(err, string(kind), "")
		}
		changed := tree.NewArena(nodes).Rebuild()
		for _, n := range changed {
			if err := tx.UpdateNodePosition(ctx, n); err != nil {
				return storeErr(err, string(kind), n.ID)
			}
		}
		repaired = len(changed)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if repaired > 0 {
		logging.Warn("tree rebuilt", map[string]interface{}{
			"kind":     kind,
			"owner_id": ownerID,
			"repaired": repaired,
		})
	}
	return repaired, nil
}

// Verify reports level, path and parent violations without writing.
func (s *TreeService) Verify(ctx context.Context, ownerID string, kind models.NodeKind) ([]tree.Violation, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}
	nodes, err := s.repo.ListNodes(ctx, kind, ownerID)
	if err != nil {
		return nil, storeErr(err, string(kind), "")
	}
	return tree.NewArena(nodes).Check(), nil
}

// =====================================================
// Tags and Images
// =====================================================

// SetTags replaces the tags of a node with names, creating owner tags that
// do not exist yet.
func (s *TreeService) SetTags(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID, names []string) ([]string, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}

	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		if _, err := tx.GetNode(ctx, kind, ownerID, id); err != nil {
			return storeErr(err, string(kind), id)
		}
		if err := tx.DetachNodeTags(ctx, kind, id); err != nil {
			return storeErr(err, "tag", id)
		}
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			tag, err := tx.GetTagByName(ctx, ownerID, name)
			if err != nil {
				if isNoRows(err) {
					tag = &models.Tag{OwnerID: ownerID, Name: name}
					err = tx.CreateTag(ctx, tag)
				}
				if err != nil {
					return storeErr(err, "tag", "")
				}
			}
			if err := tx.AttachTag(ctx, kind, id, tag.ID); err != nil {
				return storeErr(err, "tag", tag.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tags, err := s.repo.TagNamesFor(ctx, kind, []models.UUID{id})
	if err != nil {
		return nil, storeErr(err, "tag", id)
	}
	if tags[id] == nil {
		return []string{}, nil
	}
	return tags[id], nil
}

// AddImage records an image file reference for a node.
func (s *TreeService) AddImage(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID, filePath string) (*models.NodeImage, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filePath) == "" {
		return nil, apperrors.Validation("file path is required")
	}
	if _, err := s.repo.GetNode(ctx, kind, ownerID, id); err != nil {
		return nil, storeErr(err, string(kind), id)
	}

	img := &models.NodeImage{Kind: kind, NodeID: id, OwnerID: ownerID, FilePath: filePath}
	if err := s.repo.AddNodeImage(ctx, img); err != nil {
		return nil, storeErr(err, "image", id)
	}
	return img, nil
}

// Images lists the image references of a node.
func (s *TreeService) Images(ctx context.Context, ownerID string, kind models.NodeKind, id models.UUID) ([]*models.NodeImage, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := requireKind(kind); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetNode(ctx, kind, ownerID, id); err != nil {
		return nil, storeErr(err, string(kind), id)
	}
	images, err := s.repo.ListNodeImages(ctx, kind, id)
	if err != nil {
		return nil, storeErr(err, "image", id)
	}
	return images, nil
}
