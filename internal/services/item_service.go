package services

import (
	"context"
	"strings"

	"github.com/kimhsiao/homeinv/backend/internal/db"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// ItemService creates and edits inventory items. Items are entity nodes, so
// placement goes through the tree service and date facts feed the reminders.
type ItemService struct {
	repo      *db.Repository
	trees     *TreeService
	reminders *ReminderService
}

// NewItemService creates a new ItemService.
func NewItemService(repo *db.Repository, trees *TreeService, reminders *ReminderService) *ItemService {
	return &ItemService{repo: repo, trees: trees, reminders: reminders}
}

func (s *ItemService) validate(item *models.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return apperrors.Validation("name is required")
	}
	if item.WarrantyMonths < 0 {
		return apperrors.Validation("warranty months must not be negative")
	}
	if item.Status == "" {
		item.Status = models.ItemStatusNormal
	}
	if !item.Status.Valid() {
		return apperrors.Validation("unknown item status %q", item.Status)
	}
	return nil
}

func (s *ItemService) checkSpace(ctx context.Context, tx *db.Repository, ownerID string, spaceID *models.UUID) error {
	if spaceID == nil || *spaceID == "" {
		return nil
	}
	_, err := tx.GetNode(ctx, models.KindSpace, ownerID, *spaceID)
	return storeErr(err, "space", *spaceID)
}

// Create places a new item in the entity tree under parentID and generates
// the reminders its dates call for.
func (s *ItemService) Create(ctx context.Context, ownerID string, item *models.Item, parentID *models.UUID) (*models.Item, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := s.validate(item); err != nil {
		return nil, err
	}
	if item.Status == models.ItemStatusLent {
		return nil, apperrors.Validation("an item becomes lent only through a lending record")
	}
	item.OwnerID = ownerID
	item.Kind = models.KindEntity

	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		if err := s.checkSpace(ctx, tx, ownerID, item.SpaceID); err != nil {
			return err
		}
		if err := s.trees.place(ctx, tx, &item.Node, parentID); err != nil {
			return err
		}
		if err := tx.CreateItem(ctx, item); err != nil {
			return storeErr(err, "item", item.ID)
		}
		_, err := s.reminders.generate(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Info("item created", map[string]interface{}{
		"item_id": item.ID,
		"level":   item.Level,
	})
	return item, nil
}

// Get returns one item with its tag names.
func (s *ItemService) Get(ctx context.Context, ownerID string, id models.UUID) (*models.Item, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, ownerID, id)
	if err != nil {
		return nil, storeErr(err, "item", id)
	}
	tags, err := s.repo.TagNamesFor(ctx, models.KindEntity, []models.UUID{id})
	if err != nil {
		return nil, storeErr(err, "tag", id)
	}
	item.Tags = tags[id]
	return item, nil
}

// Update edits the details and dates of an item. Its tree position is
// changed only by TreeService.Move. The lent status belongs to the lending
// lifecycle and cannot be set or cleared here. Pending warranty and expiry
// reminders made stale by a date change are retracted before regeneration.
func (s *ItemService) Update(ctx context.Context, ownerID string, item *models.Item) (*models.Item, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := s.validate(item); err != nil {
		return nil, err
	}

	var updated *models.Item
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		current, err := tx.GetItem(ctx, ownerID, item.ID)
		if err != nil {
			return storeErr(err, "item", item.ID)
		}
		if (current.Status == models.ItemStatusLent) != (item.Status == models.ItemStatusLent) {
			return apperrors.Conflict("item %s lent status is managed by its lending records", item.ID)
		}
		if err := s.checkSpace(ctx, tx, ownerID, item.SpaceID); err != nil {
			return err
		}

		oldWarranty, oldExpiry := current.EffectiveWarrantyEnd(), current.ExpiryDate
		current.Name = item.Name
		current.Description = item.Description
		current.SpaceID = item.SpaceID
		current.Status = item.Status
		current.PurchaseDate = item.PurchaseDate
		current.WarrantyMonths = item.WarrantyMonths
		current.WarrantyEndDate = item.WarrantyEndDate
		current.ExpiryDate = item.ExpiryDate
		if err := tx.UpdateItemDetails(ctx, current); err != nil {
			return storeErr(err, "item", item.ID)
		}

		if end := current.EffectiveWarrantyEnd(); !end.Equal(oldWarranty) {
			if err := s.reminders.retract(ctx, tx, current.ID, models.ReminderWarranty, leadDate(end, WarrantyLeadDays)...); err != nil {
				return err
			}
		}
		if !current.ExpiryDate.Equal(oldExpiry) {
			if err := s.reminders.retract(ctx, tx, current.ID, models.ReminderExpiry, leadDate(current.ExpiryDate, ExpiryLeadDays)...); err != nil {
				return err
			}
		}

		if _, err := s.reminders.generate(ctx, tx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// leadDate returns the reminder date days before d, or nothing for an unset d.
func leadDate(d models.Date, days int) []models.Date {
	if d.IsZero() {
		return nil
	}
	return []models.Date{d.AddDays(-days)}
}
