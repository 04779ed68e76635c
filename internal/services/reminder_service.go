package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kimhsiao/homeinv/backend/internal/db"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// Lead times between an item fact and the reminder derived from it.
const (
	WarrantyLeadDays = 30
	ReturnLeadDays   = 1
	ExpiryLeadDays   = 7
)

// ReminderQuery selects reminders for List. Zero fields match everything;
// From and To bound the remind date inclusively.
type ReminderQuery struct {
	ItemID models.UUID
	Type   models.ReminderType
	Status models.ReminderStatus
	From   models.Date
	To     models.Date
}

// ReminderService derives reminders from item and lending facts and moves
// them through pending -> sent -> processed.
type ReminderService struct {
	repo *db.Repository
	now  Clock
}

// NewReminderService creates a new ReminderService.
func NewReminderService(repo *db.Repository) *ReminderService {
	return &ReminderService{repo: repo, now: time.Now}
}

// WithClock replaces the clock used for "today". Intended for tests and
// batch replays.
func (s *ReminderService) WithClock(now Clock) *ReminderService {
	s.now = now
	return s
}

// GenerateForItem creates the warranty, return and expiry reminders an item
// currently calls for. Reminders that already exist under the same
// (item, type, date) key are skipped, so repeated calls add nothing. Returns
// the reminders created by this call.
func (s *ReminderService) GenerateForItem(ctx context.Context, ownerID string, itemID models.UUID) ([]*models.Reminder, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	var created []*models.Reminder
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		item, err := tx.GetItem(ctx, ownerID, itemID)
		if err != nil {
			return storeErr(err, "item", itemID)
		}
		created, err = s.generate(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// generate inserts the missing candidate reminders of item using tx.
func (s *ReminderService) generate(ctx context.Context, tx *db.Repository, item *models.Item) ([]*models.Reminder, error) {
	lendings, err := tx.ListLendings(ctx, db.LendingFilter{ItemID: item.ID, Status: models.LendingStatusLending})
	if err != nil {
		return nil, storeErr(err, "lending", item.ID)
	}

	var created []*models.Reminder
	for _, rem := range Candidates(item, lendings) {
		ok, err := s.insertIfAbsent(ctx, tx, rem)
		if err != nil {
			return nil, err
		}
		if ok {
			created = append(created, rem)
		}
	}

	if len(created) > 0 {
		logging.Info("reminders generated", map[string]interface{}{
			"item_id": item.ID,
			"created": len(created),
		})
	}
	return created, nil
}

// insertIfAbsent stores rem unless its deduplication key is taken. The insert
// skips duplicates in the statement itself, so a concurrent generator never
// aborts the surrounding transaction.
func (s *ReminderService) insertIfAbsent(ctx context.Context, tx *db.Repository, rem *models.Reminder) (bool, error) {
	ok, err := tx.CreateReminderIfAbsent(ctx, rem)
	if err != nil {
		return false, storeErr(err, "reminder", rem.ItemID)
	}
	return ok, nil
}

// Candidates lists the reminders item and its lendings call for, without
// consulting the store. Only lendings still in the lending state with a due
// date produce return reminders.
func Candidates(item *models.Item, lendings []*models.LendingRecord) []*models.Reminder {
	var out []*models.Reminder
	newReminder := func(typ models.ReminderType, date models.Date, title, content string) *models.Reminder {
		return &models.Reminder{
			OwnerID:    item.OwnerID,
			Type:       typ,
			ItemID:     item.ID,
			Title:      title,
			Content:    content,
			RemindDate: date,
			Status:     models.ReminderPending,
		}
	}

	if end := item.EffectiveWarrantyEnd(); !end.IsZero() {
		out = append(out, newReminder(models.ReminderWarranty, end.AddDays(-WarrantyLeadDays),
			fmt.Sprintf("Warranty for %s is ending", item.Name),
			fmt.Sprintf("The warranty for %s ends on %s.", item.Name, end)))
	}

	for _, l := range lendings {
		if l.ItemID != item.ID || l.Status != models.LendingStatusLending || l.ExpectedReturnDate.IsZero() {
			continue
		}
		out = append(out, newReminder(models.ReminderReturn, l.ExpectedReturnDate.AddDays(-ReturnLeadDays),
			fmt.Sprintf("%s is due back", item.Name),
			fmt.Sprintf("%s lent to %s is due back on %s.", item.Name, l.Borrower, l.ExpectedReturnDate)))
	}

	if !item.ExpiryDate.IsZero() {
		out = append(out, newReminder(models.ReminderExpiry, item.ExpiryDate.AddDays(-ExpiryLeadDays),
			fmt.Sprintf("%s is about to expire", item.Name),
			fmt.Sprintf("%s expires on %s.", item.Name, item.ExpiryDate)))
	}
	return out
}

// retract removes pending reminders of typ for an item except those dated
// keep. Sent and processed reminders are never retracted.
func (s *ReminderService) retract(ctx context.Context, tx *db.Repository, itemID models.UUID, typ models.ReminderType, keep ...models.Date) error {
	n, err := tx.DeletePendingReminders(ctx, itemID, typ, keep)
	if err != nil {
		return storeErr(err, "reminder", itemID)
	}
	if n > 0 {
		logging.Debug("reminders retracted", map[string]interface{}{
			"item_id": itemID,
			"type":    typ,
			"removed": n,
		})
	}
	return nil
}

// Create stores a caller-defined maintenance or expiry reminder for an item.
// Warranty and return reminders are derived, never created directly.
func (s *ReminderService) Create(ctx context.Context, ownerID string, rem *models.Reminder) (*models.Reminder, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if rem.Type != models.ReminderMaintenance && rem.Type != models.ReminderExpiry {
		return nil, apperrors.Validation("reminder type must be maintenance or expiry, got %q", rem.Type)
	}
	if rem.RemindDate.IsZero() {
		return nil, apperrors.Validation("remind date is required")
	}
	rem.Title = strings.TrimSpace(rem.Title)
	if rem.Title == "" {
		return nil, apperrors.Validation("title is required")
	}
	rem.OwnerID = ownerID
	rem.Status = models.ReminderPending

	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		if _, err := tx.GetItem(ctx, ownerID, rem.ItemID); err != nil {
			return storeErr(err, "item", rem.ItemID)
		}
		ok, err := s.insertIfAbsent(ctx, tx, rem)
		if err != nil {
			return err
		}
		if !ok {
			existing, err := tx.FindReminder(ctx, rem.Key())
			if err != nil {
				return storeErr(err, "reminder", rem.ItemID)
			}
			return apperrors.Conflict("a %s reminder for item %s on %s already exists (%s, %s)",
				rem.Type, rem.ItemID, rem.RemindDate, existing.ID, existing.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rem, nil
}

// ProcessExpired moves every pending reminder dated strictly before day to
// sent, across all owners, and returns them. A zero day means today.
// Reminders already sent or processed are untouched, so a second run on the
// same day does nothing.
func (s *ReminderService) ProcessExpired(ctx context.Context, day models.Date) ([]*models.Reminder, error) {
	if day.IsZero() {
		day = today(s.now)
	}

	var advanced []*models.Reminder
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		due, err := tx.ListReminders(ctx, db.ReminderFilter{Status: models.ReminderPending, DueBefore: day})
		if err != nil {
			return storeErr(err, "reminder", "")
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]models.UUID, len(due))
		for i, rem := range due {
			ids[i] = rem.ID
		}
		if _, err := tx.MarkRemindersSent(ctx, ids); err != nil {
			return storeErr(err, "reminder", "")
		}
		for _, rem := range due {
			rem.Status = models.ReminderSent
		}
		advanced = due
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("reminder sweep finished", map[string]interface{}{
		"day":  day.String(),
		"sent": len(advanced),
	})
	return advanced, nil
}

// MarkProcessed moves a pending or sent reminder to processed. A reminder
// that is already processed is returned unchanged.
func (s *ReminderService) MarkProcessed(ctx context.Context, ownerID string, id models.UUID) (*models.Reminder, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	var rem *models.Reminder
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		var err error
		rem, err = tx.GetReminder(ctx, ownerID, id)
		if err != nil {
			return storeErr(err, "reminder", id)
		}
		if !rem.Status.CanTransition(models.ReminderProcessed) {
			return nil
		}
		ok, err := tx.SetReminderStatus(ctx, id, rem.Status, models.ReminderProcessed)
		if err != nil {
			return storeErr(err, "reminder", id)
		}
		if !ok {
			return apperrors.Conflict("reminder %s changed concurrently", id)
		}
		rem.Status = models.ReminderProcessed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rem, nil
}

// List returns the owner's reminders matching q, ordered by remind date.
func (s *ReminderService) List(ctx context.Context, ownerID string, q ReminderQuery) ([]*models.Reminder, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := db.ValidateDateRange(q.From, q.To); err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, apperrors.Validation("unknown reminder type %q", q.Type)
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperrors.Validation("unknown reminder status %q", q.Status)
	}

	reminders, err := s.repo.ListReminders(ctx, db.ReminderFilter{
		OwnerID: ownerID,
		ItemID:  q.ItemID,
		Type:    q.Type,
		Status:  q.Status,
		From:    q.From,
		To:      q.To,
	})
	if err != nil {
		return nil, storeErr(err, "reminder", "")
	}
	if reminders == nil {
		reminders = []*models.Reminder{}
	}
	return reminders, nil
}
