// Package db provides repository interfaces for the inventory data models.
package db

import (
	"context"

	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// NodeRepository defines operations for space and entity tree persistence.
// This interface allows mocking for testing and follows the Interface Segregation Principle.
type NodeRepository interface {
	CreateNode(ctx context.Context, n *models.Node) error
	GetNode(ctx context.Context, kind models.NodeKind, ownerID string, id models.UUID) (*models.Node, error)
	ListNodes(ctx context.Context, kind models.NodeKind, ownerID string) ([]*models.Node, error)
	GetNodesByIDs(ctx context.Context, kind models.NodeKind, ownerID string, ids []models.UUID) ([]*models.Node, error)
	ListChildren(ctx context.Context, kind models.NodeKind, ownerID string, parentID models.UUID) ([]*models.Node, error)
	CountChildren(ctx context.Context, kind models.NodeKind, ownerID string, parentID models.UUID) (int, error)
	UpdateNodePosition(ctx context.Context, n *models.Node) error
	UpdateNodeDetails(ctx context.Context, n *models.Node) error
	DeleteNode(ctx context.Context, kind models.NodeKind, ownerID string, id models.UUID) error
}

// ItemRepository defines operations for inventory item persistence.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, ownerID string, id models.UUID) (*models.Item, error)
	LockItem(ctx context.Context, ownerID string, id models.UUID) (*models.Item, error)
	ListItemsByIDs(ctx context.Context, ids []models.UUID) ([]*models.Item, error)
	UpdateItemDetails(ctx context.Context, item *models.Item) error
	SetItemStatus(ctx context.Context, ownerID string, id models.UUID, status models.ItemStatus) error
	SetItemStatusIf(ctx context.Context, ownerID string, id models.UUID, from, next models.ItemStatus) (bool, error)
	ClearItemSpace(ctx context.Context, ownerID string, spaceID models.UUID) (int64, error)
}

// AssociationRepository defines operations for tags and images owned by nodes.
type AssociationRepository interface {
	CreateTag(ctx context.Context, tag *models.Tag) error
	GetTagByName(ctx context.Context, ownerID, name string) (*models.Tag, error)
	ListTags(ctx context.Context, ownerID string) ([]*models.Tag, error)
	AttachTag(ctx context.Context, kind models.NodeKind, nodeID, tagID models.UUID) error
	DetachNodeTags(ctx context.Context, kind models.NodeKind, nodeID models.UUID) error
	TagNamesFor(ctx context.Context, kind models.NodeKind, nodeIDs []models.UUID) (map[models.UUID][]string, error)
	AddNodeImage(ctx context.Context, img *models.NodeImage) error
	ListNodeImages(ctx context.Context, kind models.NodeKind, nodeID models.UUID) ([]*models.NodeImage, error)
	DeleteNodeImages(ctx context.Context, kind models.NodeKind, nodeID models.UUID) ([]string, error)
}

// LendingRepository defines operations for lending record persistence.
type LendingRepository interface {
	CreateLending(ctx context.Context, rec *models.LendingRecord) error
	GetLending(ctx context.Context, ownerID string, id models.UUID) (*models.LendingRecord, error)
	ActiveLendingForItem(ctx context.Context, itemID models.UUID) (*models.LendingRecord, error)
	ListLendings(ctx context.Context, filter LendingFilter) ([]*models.LendingRecord, error)
	UpdateLending(ctx context.Context, rec *models.LendingRecord) error
	DeleteLending(ctx context.Context, ownerID string, id models.UUID) error
	MarkLendingsOverdue(ctx context.Context, ids []models.UUID) (int64, error)
}

// ReminderRepository defines operations for reminder persistence.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, rem *models.Reminder) error
	GetReminder(ctx context.Context, ownerID string, id models.UUID) (*models.Reminder, error)
	FindReminder(ctx context.Context, key models.ReminderKey) (*models.Reminder, error)
	CreateReminderIfAbsent(ctx context.Context, rem *models.Reminder) (bool, error)
	ListReminders(ctx context.Context, filter ReminderFilter) ([]*models.Reminder, error)
	SetReminderStatus(ctx context.Context, id models.UUID, from, next models.ReminderStatus) (bool, error)
	MarkRemindersSent(ctx context.Context, ids []models.UUID) (int64, error)
	DeletePendingReminders(ctx context.Context, itemID models.UUID, typ models.ReminderType, keep []models.Date) (int64, error)
}

// Store combines every repository with transactional execution.
// This is a marker interface that groups related repositories for convenience.
type Store interface {
	NodeRepository
	ItemRepository
	AssociationRepository
	LendingRepository
	ReminderRepository
}

// Ensure *Repository implements the interfaces at compile time.
var (
	_ NodeRepository        = (*Repository)(nil)
	_ ItemRepository        = (*Repository)(nil)
	_ AssociationRepository = (*Repository)(nil)
	_ LendingRepository     = (*Repository)(nil)
	_ ReminderRepository    = (*Repository)(nil)
	_ Store                 = (*Repository)(nil)
)
