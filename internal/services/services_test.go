// Package services tests for business logic orchestration.
package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/homeinv/backend/internal/db"
	"github.com/kimhsiao/homeinv/backend/internal/db/dbtest"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/models"
)

const (
	ownerA = "family-a"
	ownerB = "family-b"
)

type fixture struct {
	ctx       context.Context
	conn      *db.DB
	repo      *db.Repository
	trees     *TreeService
	items     *ItemService
	lendings  *LendingService
	reminders *ReminderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := db.NewRepository(conn)
	clock := fixedClock("2024-01-01")
	trees := NewTreeService(repo)
	reminders := NewReminderService(repo).WithClock(clock)
	return &fixture{
		ctx:       context.Background(),
		conn:      conn,
		repo:      repo,
		trees:     trees,
		items:     NewItemService(repo, trees, reminders),
		lendings:  NewLendingService(repo, reminders).WithClock(clock),
		reminders: reminders,
	}
}

func fixedClock(day string) Clock {
	d := models.MustParseDate(day)
	return func() time.Time { return d.Time().Add(10 * time.Hour) }
}

func date(s string) models.Date {
	return models.MustParseDate(s)
}

func ref(id models.UUID) *models.UUID {
	return &id
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.CodeOf(err), "error: %v", err)
}

func (f *fixture) space(t *testing.T, name string, parent *models.Node) *models.Node {
	t.Helper()
	var parentID *models.UUID
	if parent != nil {
		parentID = ref(parent.ID)
	}
	n, err := f.trees.Insert(f.ctx, ownerA, &models.Node{Kind: models.KindSpace, Name: name}, parentID)
	require.NoError(t, err)
	return n
}

func (f *fixture) entity(t *testing.T, name string, parent *models.Node) *models.Node {
	t.Helper()
	var parentID *models.UUID
	if parent != nil {
		parentID = ref(parent.ID)
	}
	n, err := f.trees.Insert(f.ctx, ownerA, &models.Node{Kind: models.KindEntity, Name: name}, parentID)
	require.NoError(t, err)
	return n
}

func (f *fixture) item(t *testing.T, item *models.Item) *models.Item {
	t.Helper()
	created, err := f.items.Create(f.ctx, ownerA, item, nil)
	require.NoError(t, err)
	return created
}

func (f *fixture) node(t *testing.T, kind models.NodeKind, id models.UUID) *models.Node {
	t.Helper()
	n, err := f.repo.GetNode(f.ctx, kind, ownerA, id)
	require.NoError(t, err)
	return n
}

func (f *fixture) reminderCount(t *testing.T) int {
	t.Helper()
	all, err := f.repo.ListReminders(f.ctx, db.ReminderFilter{})
	require.NoError(t, err)
	return len(all)
}
