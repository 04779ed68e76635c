package services

import (
	"context"
	"strings"
	"time"

	"github.com/kimhsiao/homeinv/backend/internal/db"
	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// LendingQuery selects lending records for List.
type LendingQuery struct {
	ItemID models.UUID
	Status models.LendingStatus
}

// LendingService runs the lending state machine
// (lending -> overdue -> returned, lending -> returned) and keeps the lent
// item's visible status in step with it.
type LendingService struct {
	repo      *db.Repository
	reminders *ReminderService
	now       Clock
}

// NewLendingService creates a new LendingService. Reminders for due dates are
// generated through reminders.
func NewLendingService(repo *db.Repository, reminders *ReminderService) *LendingService {
	return &LendingService{repo: repo, reminders: reminders, now: time.Now}
}

// WithClock replaces the clock used for "today".
func (s *LendingService) WithClock(now Clock) *LendingService {
	s.now = now
	return s
}

func (s *LendingService) validate(rec *models.LendingRecord) error {
	rec.Borrower = strings.TrimSpace(rec.Borrower)
	if rec.Borrower == "" {
		return apperrors.Validation("borrower is required")
	}
	if !rec.ExpectedReturnDate.IsZero() && rec.ExpectedReturnDate.Before(rec.LendDate) {
		return apperrors.Validation("expected return date %s is before lend date %s", rec.ExpectedReturnDate, rec.LendDate)
	}
	return nil
}

// Create lends an item: the record starts in lending, the item becomes lent
// and a return reminder is generated for the due date. An item that already
// has an active lending is refused with Conflict.
func (s *LendingService) Create(ctx context.Context, ownerID string, rec *models.LendingRecord) (*models.LendingRecord, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if rec.ItemID == "" {
		return nil, apperrors.Validation("item id is required")
	}
	if rec.LendDate.IsZero() {
		rec.LendDate = today(s.now)
	}
	if err := s.validate(rec); err != nil {
		return nil, err
	}
	rec.OwnerID = ownerID
	rec.Status = models.LendingStatusLending
	rec.ActualReturnDate = models.Date{}

	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		// The item row lock serializes concurrent lendings of the same item
		// between the active check and the insert.
		item, err := tx.LockItem(ctx, ownerID, rec.ItemID)
		if err != nil {
			return storeErr(err, "item", rec.ItemID)
		}

		active, err := tx.ActiveLendingForItem(ctx, rec.ItemID)
		switch {
		case err == nil:
			return apperrors.Conflict("item %s is already lent to %s", rec.ItemID, active.Borrower)
		case !isNoRows(err):
			return storeErr(err, "lending", rec.ItemID)
		}

		if err := tx.CreateLending(ctx, rec); err != nil {
			return storeErr(err, "lending", rec.ItemID)
		}
		if err := tx.SetItemStatus(ctx, ownerID, item.ID, models.ItemStatusLent); err != nil {
			return storeErr(err, "item", item.ID)
		}
		item.Status = models.ItemStatusLent

		_, err = s.reminders.generate(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Info("item lent", map[string]interface{}{
		"lending_id": rec.ID,
		"item_id":    rec.ItemID,
		"due":        rec.ExpectedReturnDate.String(),
	})
	return rec, nil
}

// Get returns one lending record.
func (s *LendingService) Get(ctx context.Context, ownerID string, id models.UUID) (*models.LendingRecord, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetLending(ctx, ownerID, id)
	if err != nil {
		return nil, storeErr(err, "lending", id)
	}
	return rec, nil
}

// Update edits the borrower, dates and note of a lending record. Status is
// not editable here. When the due date changes, pending return reminders for
// the old date are retracted and the reminder for the new date is generated.
func (s *LendingService) Update(ctx context.Context, ownerID string, rec *models.LendingRecord) (*models.LendingRecord, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	var updated *models.LendingRecord
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		current, err := tx.GetLending(ctx, ownerID, rec.ID)
		if err != nil {
			return storeErr(err, "lending", rec.ID)
		}

		dueChanged := !current.ExpectedReturnDate.Equal(rec.ExpectedReturnDate)
		current.Borrower = rec.Borrower
		current.BorrowerContact = rec.BorrowerContact
		current.Note = rec.Note
		if !rec.LendDate.IsZero() {
			current.LendDate = rec.LendDate
		}
		current.ExpectedReturnDate = rec.ExpectedReturnDate
		if err := s.validate(current); err != nil {
			return err
		}
		if err := tx.UpdateLending(ctx, current); err != nil {
			return storeErr(err, "lending", rec.ID)
		}
		updated = current

		if !dueChanged || current.Status == models.LendingStatusReturned {
			return nil
		}

		var keep []models.Date
		if current.Status == models.LendingStatusLending && !current.ExpectedReturnDate.IsZero() {
			keep = append(keep, current.ExpectedReturnDate.AddDays(-ReturnLeadDays))
		}
		if err := s.reminders.retract(ctx, tx, current.ItemID, models.ReminderReturn, keep...); err != nil {
			return err
		}

		item, err := tx.GetItem(ctx, ownerID, current.ItemID)
		if err != nil {
			return storeErr(err, "item", current.ItemID)
		}
		_, err = s.reminders.generate(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Return closes a lending record on actualReturnDate (today when zero). The
// item goes back to normal only if it is still lent. Returning a record that
// is already returned changes nothing.
func (s *LendingService) Return(ctx context.Context, ownerID string, id models.UUID, actualReturnDate models.Date) (*models.LendingRecord, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if actualReturnDate.IsZero() {
		actualReturnDate = today(s.now)
	}

	var rec *models.LendingRecord
	var restored bool
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		var err error
		rec, err = tx.GetLending(ctx, ownerID, id)
		if err != nil {
			return storeErr(err, "lending", id)
		}
		if rec.Status == models.LendingStatusReturned {
			return nil
		}
		if actualReturnDate.Before(rec.LendDate) {
			return apperrors.Validation("return date %s is before lend date %s", actualReturnDate, rec.LendDate)
		}

		rec.Status = models.LendingStatusReturned
		rec.ActualReturnDate = actualReturnDate
		if err := tx.UpdateLending(ctx, rec); err != nil {
			return storeErr(err, "lending", id)
		}

		restored, err = tx.SetItemStatusIf(ctx, ownerID, rec.ItemID, models.ItemStatusLent, models.ItemStatusNormal)
		if err != nil {
			return storeErr(err, "item", rec.ItemID)
		}
		return s.reminders.retract(ctx, tx, rec.ItemID, models.ReminderReturn)
	})
	if err != nil {
		return nil, err
	}

	logging.Info("item returned", map[string]interface{}{
		"lending_id":      rec.ID,
		"item_id":         rec.ItemID,
		"item_restored":   restored,
		"actual_returned": rec.ActualReturnDate.String(),
	})
	return rec, nil
}

// Delete removes a lending record. Deleting an active record reverts the
// lent item to normal and retracts its pending return reminders.
func (s *LendingService) Delete(ctx context.Context, ownerID string, id models.UUID) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}

	return s.repo.InTx(ctx, func(tx *db.Repository) error {
		rec, err := tx.GetLending(ctx, ownerID, id)
		if err != nil {
			return storeErr(err, "lending", id)
		}
		if rec.IsActive() {
			if _, err := tx.SetItemStatusIf(ctx, ownerID, rec.ItemID, models.ItemStatusLent, models.ItemStatusNormal); err != nil {
				return storeErr(err, "item", rec.ItemID)
			}
			if err := s.reminders.retract(ctx, tx, rec.ItemID, models.ReminderReturn); err != nil {
				return err
			}
		}
		return storeErr(tx.DeleteLending(ctx, ownerID, id), "lending", id)
	})
}

// SweepOverdue moves every lending whose due date is strictly before day to
// overdue, across all owners, and returns the records it advanced. A zero
// day means today. Overdue records never go back to lending.
func (s *LendingService) SweepOverdue(ctx context.Context, day models.Date) ([]*models.LendingRecord, error) {
	if day.IsZero() {
		day = today(s.now)
	}

	var advanced []*models.LendingRecord
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		due, err := tx.ListLendings(ctx, db.LendingFilter{Status: models.LendingStatusLending, DueBefore: day})
		if err != nil {
			return storeErr(err, "lending", "")
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]models.UUID, len(due))
		for i, rec := range due {
			ids[i] = rec.ID
		}
		if _, err := tx.MarkLendingsOverdue(ctx, ids); err != nil {
			return storeErr(err, "lending", "")
		}
		for _, rec := range due {
			rec.Status = models.LendingStatusOverdue
		}
		advanced = due
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("lending sweep finished", map[string]interface{}{
		"day":     day.String(),
		"overdue": len(advanced),
	})
	return advanced, nil
}

// List returns the owner's lending records filtered by item and status.
func (s *LendingService) List(ctx context.Context, ownerID string, q LendingQuery) ([]*models.LendingRecord, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperrors.Validation("unknown lending status %q", q.Status)
	}

	records, err := s.repo.ListLendings(ctx, db.LendingFilter{OwnerID: ownerID, ItemID: q.ItemID, Status: q.Status})
	if err != nil {
		return nil, storeErr(err, "lending", q.ItemID)
	}
	if records == nil {
		records = []*models.LendingRecord{}
	}
	return records, nil
}
