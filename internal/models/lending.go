package models

import "time"

// LendingStatus is the lifecycle state of a lending record.
type LendingStatus string

const (
	LendingStatusLending  LendingStatus = "lending"
	LendingStatusOverdue  LendingStatus = "overdue"
	LendingStatusReturned LendingStatus = "returned"
)

// Valid reports whether s is a known lending status.
func (s LendingStatus) Valid() bool {
	return s == LendingStatusLending || s == LendingStatusOverdue || s == LendingStatusReturned
}

// Active reports whether the item is still out with the borrower.
func (s LendingStatus) Active() bool {
	return s == LendingStatusLending || s == LendingStatusOverdue
}

// LendingRecord is a borrow transaction for one item.
// Status is returned exactly when ActualReturnDate is set.
type LendingRecord struct {
	ID                 UUID          `db:"id" json:"id"`
	OwnerID            string        `db:"owner_id" json:"owner_id"`
	ItemID             UUID          `db:"item_id" json:"item_id"`
	Borrower           string        `db:"borrower" json:"borrower"`
	BorrowerContact    string        `db:"borrower_contact" json:"borrower_contact,omitempty"`
	LendDate           Date          `db:"lend_date" json:"lend_date"`
	ExpectedReturnDate Date          `db:"expected_return_date" json:"expected_return_date"`
	ActualReturnDate   Date          `db:"actual_return_date" json:"actual_return_date"`
	Status             LendingStatus `db:"status" json:"status"`
	Note               string        `db:"note" json:"note,omitempty"`
	CreatedAt          int64         `db:"created_at" json:"created_at"`
	UpdatedAt          int64         `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for LendingRecord.
func (LendingRecord) TableName() string {
	return "lendings"
}

// IsActive reports whether the record holds the item.
func (r *LendingRecord) IsActive() bool {
	return r.Status.Active()
}

// IsOverdueOn reports whether an unreturned lending is past due on day.
func (r *LendingRecord) IsOverdueOn(day Date) bool {
	return r.Status == LendingStatusLending && !r.ExpectedReturnDate.IsZero() && r.ExpectedReturnDate.Before(day)
}

// Touch updates the UpdatedAt timestamp.
func (r *LendingRecord) Touch() {
	r.UpdatedAt = time.Now().Unix()
}
