package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/tree"
)

// assertConsistent checks level and path of every stored node against its parent.
func assertConsistent(t *testing.T, f *fixture, kind models.NodeKind) {
	t.Helper()
	violations, err := f.trees.Verify(f.ctx, ownerA, kind)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestTreeService_Insert(t *testing.T) {
	f := newFixture(t)

	house := f.space(t, "house", nil)
	assert.Equal(t, 0, house.Level)
	assert.Equal(t, "", house.Path)
	assert.True(t, house.IsRoot())

	kitchen := f.space(t, "kitchen", house)
	drawer := f.space(t, "drawer", kitchen)
	assert.Equal(t, 2, drawer.Level)
	assert.Equal(t, tree.Encode([]models.UUID{house.ID, kitchen.ID}), drawer.Path)

	stored := f.node(t, models.KindSpace, drawer.ID)
	assert.Equal(t, drawer.Path, stored.Path)
	assertConsistent(t, f, models.KindSpace)
}

func TestTreeService_Insert_errors(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)

	_, err := f.trees.Insert(f.ctx, "", &models.Node{Kind: models.KindSpace, Name: "x"}, nil)
	requireCode(t, err, apperrors.ErrValidation)

	_, err = f.trees.Insert(f.ctx, ownerA, &models.Node{Kind: models.KindSpace, Name: "  "}, nil)
	requireCode(t, err, apperrors.ErrValidation)

	_, err = f.trees.Insert(f.ctx, ownerA, &models.Node{Kind: "room", Name: "x"}, nil)
	requireCode(t, err, apperrors.ErrValidation)

	_, err = f.trees.Insert(f.ctx, ownerA, &models.Node{Kind: models.KindSpace, Name: "x"}, ref("00000000-0000-4000-8000-000000000000"))
	requireCode(t, err, apperrors.ErrNotFound)

	// A parent owned by someone else is not visible.
	_, err = f.trees.Insert(f.ctx, ownerB, &models.Node{Kind: models.KindSpace, Name: "x"}, ref(house.ID))
	requireCode(t, err, apperrors.ErrNotFound)

	// Kinds do not mix.
	_, err = f.trees.Insert(f.ctx, ownerA, &models.Node{Kind: models.KindEntity, Name: "x"}, ref(house.ID))
	requireCode(t, err, apperrors.ErrNotFound)
}

func TestTreeService_Move_cascades(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)
	drawer := f.space(t, "drawer", kitchen)
	box := f.space(t, "box", drawer)
	garage := f.space(t, "garage", nil)
	shelf := f.space(t, "shelf", garage)

	moved, err := f.trees.Move(f.ctx, ownerA, models.KindSpace, kitchen.ID, ref(shelf.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Level)

	gotBox := f.node(t, models.KindSpace, box.ID)
	assert.Equal(t, 4, gotBox.Level)
	assert.Equal(t, tree.Encode([]models.UUID{garage.ID, shelf.ID, kitchen.ID, drawer.ID}), gotBox.Path)
	assertConsistent(t, f, models.KindSpace)

	// Moving to root.
	_, err = f.trees.Move(f.ctx, ownerA, models.KindSpace, drawer.ID, nil)
	require.NoError(t, err)
	gotBox = f.node(t, models.KindSpace, box.ID)
	assert.Equal(t, 1, gotBox.Level)
	assert.Equal(t, string(drawer.ID), gotBox.Path)
	assertConsistent(t, f, models.KindSpace)
}

// interruptUpdates makes every later UPDATE of node id in kind's table fail,
// so a multi-row write dies partway through.
func interruptUpdates(t *testing.T, f *fixture, kind models.NodeKind, id models.UUID) {
	t.Helper()
	table := kind.TableName()
	stmt := fmt.Sprintf(`CREATE TRIGGER interrupt_%s BEFORE UPDATE ON %s WHEN NEW.id = '%s'
	BEGIN SELECT RAISE(ABORT, 'write interrupted'); END`, table, table, id)
	_, err := f.conn.ExecContext(f.ctx, stmt)
	require.NoError(t, err)
}

func TestTreeService_Move_rollsBackInterruptedCascade(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)
	drawer := f.space(t, "drawer", kitchen)
	box := f.space(t, "box", drawer)
	garage := f.space(t, "garage", nil)

	before, err := f.repo.ListNodes(f.ctx, models.KindSpace, ownerA)
	require.NoError(t, err)

	// kitchen and drawer are rewritten before the cascade reaches box.
	interruptUpdates(t, f, models.KindSpace, box.ID)
	_, err = f.trees.Move(f.ctx, ownerA, models.KindSpace, kitchen.ID, ref(garage.ID))
	requireCode(t, err, apperrors.ErrDatabase)

	after, err := f.repo.ListNodes(f.ctx, models.KindSpace, ownerA)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, house.ID, f.node(t, models.KindSpace, kitchen.ID).ParentKey())
	assertConsistent(t, f, models.KindSpace)
}

func TestTreeService_Move_cycleGuard(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)
	drawer := f.space(t, "drawer", kitchen)

	before, err := f.trees.GetTree(f.ctx, ownerA, models.KindSpace)
	require.NoError(t, err)

	_, err = f.trees.Move(f.ctx, ownerA, models.KindSpace, house.ID, ref(drawer.ID))
	requireCode(t, err, apperrors.ErrConflict)

	_, err = f.trees.Move(f.ctx, ownerA, models.KindSpace, kitchen.ID, ref(kitchen.ID))
	requireCode(t, err, apperrors.ErrConflict)

	after, err := f.trees.GetTree(f.ctx, ownerA, models.KindSpace)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.trees.Move(f.ctx, ownerA, models.KindSpace, "00000000-0000-4000-8000-000000000000", nil)
	requireCode(t, err, apperrors.ErrNotFound)
	_, err = f.trees.Move(f.ctx, ownerA, models.KindSpace, kitchen.ID, ref("00000000-0000-4000-8000-000000000000"))
	requireCode(t, err, apperrors.ErrNotFound)
}

func TestTreeService_DeleteSpace(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)

	err := f.trees.Delete(f.ctx, ownerA, models.KindSpace, house.ID)
	requireCode(t, err, apperrors.ErrConflict)
	f.node(t, models.KindSpace, house.ID)

	// Items stored in a deleted space lose the reference.
	drill := f.item(t, &models.Item{Node: models.Node{Name: "drill"}, SpaceID: ref(kitchen.ID)})

	_, err = f.trees.SetTags(f.ctx, ownerA, models.KindSpace, kitchen.ID, []string{"cold"})
	require.NoError(t, err)
	_, err = f.trees.AddImage(f.ctx, ownerA, models.KindSpace, kitchen.ID, "kitchen.webp")
	require.NoError(t, err)

	require.NoError(t, f.trees.Delete(f.ctx, ownerA, models.KindSpace, kitchen.ID))
	require.NoError(t, f.trees.Delete(f.ctx, ownerA, models.KindSpace, house.ID))

	got, err := f.items.Get(f.ctx, ownerA, drill.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SpaceID)

	tags, err := f.repo.TagNamesFor(f.ctx, models.KindSpace, []models.UUID{kitchen.ID})
	require.NoError(t, err)
	assert.Empty(t, tags)
	images, err := f.repo.ListNodeImages(f.ctx, models.KindSpace, kitchen.ID)
	require.NoError(t, err)
	assert.Empty(t, images)

	requireCode(t, f.trees.Delete(f.ctx, ownerA, models.KindSpace, house.ID), apperrors.ErrNotFound)
}

func TestTreeService_DeleteEntity_reparentsChildren(t *testing.T) {
	f := newFixture(t)
	toolbox := f.entity(t, "toolbox", nil)
	tray := f.entity(t, "tray", toolbox)
	screws := f.entity(t, "screws", tray)
	hammer := f.entity(t, "hammer", toolbox)

	require.NoError(t, f.trees.Delete(f.ctx, ownerA, models.KindEntity, toolbox.ID))

	for _, id := range []models.UUID{tray.ID, hammer.ID} {
		n := f.node(t, models.KindEntity, id)
		assert.True(t, n.IsRoot())
		assert.Equal(t, 0, n.Level)
		assert.Equal(t, "", n.Path)
	}
	got := f.node(t, models.KindEntity, screws.ID)
	assert.Equal(t, 1, got.Level)
	assert.Equal(t, string(tray.ID), got.Path)
	assertConsistent(t, f, models.KindEntity)

	_, err := f.repo.GetNode(f.ctx, models.KindEntity, ownerA, toolbox.ID)
	assert.Error(t, err)
}

func TestTreeService_DeleteEntity_rollsBackInterruptedReparent(t *testing.T) {
	f := newFixture(t)
	toolbox := f.entity(t, "toolbox", nil)
	tray := f.entity(t, "tray", toolbox)
	screws := f.entity(t, "screws", tray)
	_, err := f.trees.SetTags(f.ctx, ownerA, models.KindEntity, toolbox.ID, []string{"garage"})
	require.NoError(t, err)

	before, err := f.repo.ListNodes(f.ctx, models.KindEntity, ownerA)
	require.NoError(t, err)

	// tray becomes a root first, then re-deriving screws fails.
	interruptUpdates(t, f, models.KindEntity, screws.ID)
	err = f.trees.Delete(f.ctx, ownerA, models.KindEntity, toolbox.ID)
	requireCode(t, err, apperrors.ErrDatabase)

	after, err := f.repo.ListNodes(f.ctx, models.KindEntity, ownerA)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, toolbox.ID, f.node(t, models.KindEntity, tray.ID).ParentKey())
	assertConsistent(t, f, models.KindEntity)

	tags, err := f.repo.TagNamesFor(f.ctx, models.KindEntity, []models.UUID{toolbox.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"garage"}, tags[toolbox.ID])
}

func TestTreeService_GetTree(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)
	f.space(t, "bath", house)
	f.space(t, "attic", nil)
	f.space(t, "drawer", kitchen)

	_, err := f.trees.SetTags(f.ctx, ownerA, models.KindSpace, kitchen.ID, []string{"warm", "food", "warm"})
	require.NoError(t, err)

	roots, err := f.trees.GetTree(f.ctx, ownerA, models.KindSpace)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "attic", roots[0].Name)
	require.Len(t, roots[1].Children, 2)
	assert.Equal(t, "bath", roots[1].Children[0].Name)
	k := roots[1].Children[1]
	assert.Equal(t, "kitchen", k.Name)
	assert.Equal(t, []string{"food", "warm"}, k.Tags)
	require.Len(t, k.Children, 1)
	assert.Equal(t, "drawer", k.Children[0].Name)

	empty, err := f.trees.GetTree(f.ctx, ownerB, models.KindSpace)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTreeService_AncestorPath(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)
	drawer := f.space(t, "drawer", kitchen)

	path, err := f.trees.AncestorPath(f.ctx, ownerA, models.KindSpace, drawer.ID)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, house.ID, path[0].ID)
	assert.Equal(t, kitchen.ID, path[1].ID)

	path, err = f.trees.AncestorPath(f.ctx, ownerA, models.KindSpace, house.ID)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = f.trees.AncestorPath(f.ctx, ownerB, models.KindSpace, drawer.ID)
	requireCode(t, err, apperrors.ErrNotFound)
}

func TestTreeService_RenameRebuildVerify(t *testing.T) {
	f := newFixture(t)
	house := f.space(t, "house", nil)
	kitchen := f.space(t, "kitchen", house)
	drawer := f.space(t, "drawer", kitchen)

	renamed, err := f.trees.Rename(f.ctx, ownerA, models.KindSpace, kitchen.ID, " galley ", "ship style")
	require.NoError(t, err)
	assert.Equal(t, "galley", renamed.Name)
	_, err = f.trees.Rename(f.ctx, ownerA, models.KindSpace, kitchen.ID, "", "")
	requireCode(t, err, apperrors.ErrValidation)

	// Corrupt the stored positions behind the service's back.
	broken := f.node(t, models.KindSpace, drawer.ID)
	broken.Level, broken.Path = 9, "garbage"
	require.NoError(t, f.repo.UpdateNodePosition(f.ctx, broken))

	violations, err := f.trees.Verify(f.ctx, ownerA, models.KindSpace)
	require.NoError(t, err)
	assert.Len(t, violations, 2)

	repaired, err := f.trees.Rebuild(f.ctx, ownerA, models.KindSpace)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assertConsistent(t, f, models.KindSpace)

	repaired, err = f.trees.Rebuild(f.ctx, ownerA, models.KindSpace)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestTreeService_Images(t *testing.T) {
	f := newFixture(t)
	lamp := f.entity(t, "lamp", nil)

	_, err := f.trees.AddImage(f.ctx, ownerA, models.KindEntity, lamp.ID, "")
	requireCode(t, err, apperrors.ErrValidation)

	img, err := f.trees.AddImage(f.ctx, ownerA, models.KindEntity, lamp.ID, "lamp.webp")
	require.NoError(t, err)
	assert.NotEmpty(t, img.ID)

	images, err := f.trees.Images(f.ctx, ownerA, models.KindEntity, lamp.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "lamp.webp", images[0].FilePath)
}
