package models

import "time"

// ReminderType says which item fact a reminder was derived from.
type ReminderType string

const (
	ReminderWarranty    ReminderType = "warranty"
	ReminderReturn      ReminderType = "return"
	ReminderMaintenance ReminderType = "maintenance"
	ReminderExpiry      ReminderType = "expiry"
)

// Valid reports whether t is a known reminder type.
func (t ReminderType) Valid() bool {
	switch t {
	case ReminderWarranty, ReminderReturn, ReminderMaintenance, ReminderExpiry:
		return true
	}
	return false
}

// ReminderStatus is the lifecycle state of a reminder.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderProcessed ReminderStatus = "processed"
)

// Valid reports whether s is a known reminder status.
func (s ReminderStatus) Valid() bool {
	return s == ReminderPending || s == ReminderSent || s == ReminderProcessed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// The lifecycle only moves forward: pending -> sent -> processed, or
// pending -> processed directly.
func (s ReminderStatus) CanTransition(next ReminderStatus) bool {
	switch s {
	case ReminderPending:
		return next == ReminderSent || next == ReminderProcessed
	case ReminderSent:
		return next == ReminderProcessed
	}
	return false
}

// Reminder is a time-anchored notification derived from item or lending facts.
// (ItemID, Type, RemindDate) is unique.
type Reminder struct {
	ID         UUID           `db:"id" json:"id"`
	OwnerID    string         `db:"owner_id" json:"owner_id"`
	Type       ReminderType   `db:"type" json:"type"`
	ItemID     UUID           `db:"item_id" json:"item_id"`
	Title      string         `db:"title" json:"title"`
	Content    string         `db:"content" json:"content,omitempty"`
	RemindDate Date           `db:"remind_date" json:"remind_date"`
	Status     ReminderStatus `db:"status" json:"status"`
	CreatedAt  int64          `db:"created_at" json:"created_at"`
	UpdatedAt  int64          `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Reminder.
func (Reminder) TableName() string {
	return "reminders"
}

// ReminderKey is the deduplication key of a reminder.
type ReminderKey struct {
	ItemID     UUID
	Type       ReminderType
	RemindDate Date
}

// Key returns the deduplication key of r.
func (r *Reminder) Key() ReminderKey {
	return ReminderKey{ItemID: r.ItemID, Type: r.Type, RemindDate: r.RemindDate}
}

// Touch updates the UpdatedAt timestamp.
func (r *Reminder) Touch() {
	r.UpdatedAt = time.Now().Unix()
}
