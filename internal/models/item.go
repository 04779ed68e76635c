package models

// ItemStatus is the visible status of an inventory item.
type ItemStatus string

const (
	ItemStatusNormal    ItemStatus = "normal"
	ItemStatusLent      ItemStatus = "lent"
	ItemStatusDamaged   ItemStatus = "damaged"
	ItemStatusLost      ItemStatus = "lost"
	ItemStatusDiscarded ItemStatus = "discarded"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusNormal, ItemStatusLent, ItemStatusDamaged, ItemStatusLost, ItemStatusDiscarded:
		return true
	}
	return false
}

// Item is an entity-kind node together with the inventory facts reminders
// and lending are derived from.
type Item struct {
	Node
	SpaceID         *UUID      `db:"space_id" json:"space_id,omitempty"`
	Status          ItemStatus `db:"status" json:"status"`
	PurchaseDate    Date       `db:"purchase_date" json:"purchase_date"`
	WarrantyMonths  int        `db:"warranty_months" json:"warranty_months,omitempty"`
	WarrantyEndDate Date       `db:"warranty_end_date" json:"warranty_end_date"`
	ExpiryDate      Date       `db:"expiry_date" json:"expiry_date"`
}

// TableName returns the table name for Item.
func (Item) TableName() string {
	return KindEntity.TableName()
}

// EffectiveWarrantyEnd returns the explicit warranty end date when set,
// otherwise purchase date plus warranty months. Zero when neither is known.
func (i *Item) EffectiveWarrantyEnd() Date {
	if !i.WarrantyEndDate.IsZero() {
		return i.WarrantyEndDate
	}
	if i.PurchaseDate.IsZero() || i.WarrantyMonths <= 0 {
		return Date{}
	}
	return i.PurchaseDate.AddMonths(i.WarrantyMonths)
}
