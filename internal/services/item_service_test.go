package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/homeinv/backend/internal/db"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/models"
)

func TestItemService_Create(t *testing.T) {
	f := newFixture(t)
	garage := f.space(t, "garage", nil)
	toolbox := f.item(t, &models.Item{Node: models.Node{Name: "toolbox"}, SpaceID: ref(garage.ID)})

	drill, err := f.items.Create(f.ctx, ownerA, &models.Item{Node: models.Node{Name: "drill"}}, ref(toolbox.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, drill.Level)
	assert.Equal(t, string(toolbox.ID), drill.Path)
	assert.Equal(t, models.ItemStatusNormal, drill.Status)

	_, err = f.items.Create(f.ctx, ownerA, &models.Item{Node: models.Node{Name: "x"}, SpaceID: ref("00000000-0000-4000-8000-000000000000")}, nil)
	requireCode(t, err, apperrors.ErrNotFound)
	_, err = f.items.Create(f.ctx, ownerA, &models.Item{Node: models.Node{Name: "x"}, Status: models.ItemStatusLent}, nil)
	requireCode(t, err, apperrors.ErrValidation)
	_, err = f.items.Create(f.ctx, ownerA, &models.Item{Node: models.Node{Name: "x"}, WarrantyMonths: -1}, nil)
	requireCode(t, err, apperrors.ErrValidation)
	_, err = f.items.Create(f.ctx, ownerA, &models.Item{Node: models.Node{Name: "x"}, Status: "stolen"}, nil)
	requireCode(t, err, apperrors.ErrValidation)
}

func TestItemService_Update_regeneratesReminders(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, &models.Item{
		Node:           models.Node{Name: "fridge"},
		PurchaseDate:   date("2023-01-01"),
		WarrantyMonths: 12,
	})

	item.WarrantyMonths = 24
	item.ExpiryDate = date("2030-01-01")
	updated, err := f.items.Update(f.ctx, ownerA, item)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", updated.EffectiveWarrantyEnd().String())

	warranty, err := f.repo.ListReminders(f.ctx, db.ReminderFilter{ItemID: item.ID, Type: models.ReminderWarranty})
	require.NoError(t, err)
	require.Len(t, warranty, 1)
	assert.Equal(t, "2024-12-02", warranty[0].RemindDate.String())

	expiry, err := f.repo.ListReminders(f.ctx, db.ReminderFilter{ItemID: item.ID, Type: models.ReminderExpiry})
	require.NoError(t, err)
	require.Len(t, expiry, 1)
	assert.Equal(t, "2029-12-25", expiry[0].RemindDate.String())
}

func TestItemService_Update_lentStatusIsManaged(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, &models.Item{Node: models.Node{Name: "kayak"}})

	item.Status = models.ItemStatusLent
	_, err := f.items.Update(f.ctx, ownerA, item)
	requireCode(t, err, apperrors.ErrConflict)

	rec, err := f.lendings.Create(f.ctx, ownerA, &models.LendingRecord{ItemID: item.ID, Borrower: "Lin"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	current, err := f.items.Get(f.ctx, ownerA, item.ID)
	require.NoError(t, err)
	current.Status = models.ItemStatusNormal
	_, err = f.items.Update(f.ctx, ownerA, current)
	requireCode(t, err, apperrors.ErrConflict)

	current.Status = models.ItemStatusLent
	current.Description = "two seater"
	updated, err := f.items.Update(f.ctx, ownerA, current)
	require.NoError(t, err)
	assert.Equal(t, "two seater", updated.Description)
}

func TestItemService_Get(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, &models.Item{Node: models.Node{Name: "guitar"}})
	_, err := f.trees.SetTags(f.ctx, ownerA, models.KindEntity, item.ID, []string{"music"})
	require.NoError(t, err)

	got, err := f.items.Get(f.ctx, ownerA, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"music"}, got.Tags)

	_, err = f.items.Get(f.ctx, ownerB, item.ID)
	requireCode(t, err, apperrors.ErrNotFound)
}
