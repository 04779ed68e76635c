// Package db provides list filter building functionality.
package db

import (
	"fmt"
	"strings"

	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// Filter represents a single list filter condition.
type Filter interface {
	// SQL returns the SQL fragment for this filter
	SQL() string

	// Args returns the arguments for this filter
	Args() []interface{}

	// Valid checks if the filter is valid
	Valid() bool
}

// EqualFilter matches a column against a single value.
type EqualFilter struct {
	Column string
	Value  string
}

// Valid reports whether the filter has a value to match.
func (f *EqualFilter) Valid() bool {
	return f.Column != "" && f.Value != ""
}

// SQL returns the SQL fragment for equality filtering.
func (f *EqualFilter) SQL() string {
	return f.Column + " = ?"
}

// Args returns the arguments for equality filtering.
func (f *EqualFilter) Args() []interface{} {
	return []interface{}{f.Value}
}

// DateRangeFilter filters a 'YYYY-MM-DD' column by an inclusive date range.
// A zero bound is open.
type DateRangeFilter struct {
	Column string
	From   models.Date
	To     models.Date
}

// Valid checks if the date range is valid.
func (f *DateRangeFilter) Valid() bool {
	// At least one boundary should be set
	if f.From.IsZero() && f.To.IsZero() {
		return false
	}
	// From should not be after To (if both are set)
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return false
	}
	return true
}

// SQL returns the SQL fragment for date range filtering.
func (f *DateRangeFilter) SQL() string {
	var parts []string
	if !f.From.IsZero() {
		parts = append(parts, f.Column+" >= ?")
	}
	if !f.To.IsZero() {
		parts = append(parts, f.Column+" <= ?")
	}
	return strings.Join(parts, " AND ")
}

// Args returns the arguments for date range filtering.
func (f *DateRangeFilter) Args() []interface{} {
	var args []interface{}
	if !f.From.IsZero() {
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		args = append(args, f.To.String())
	}
	return args
}

// BeforeFilter matches a 'YYYY-MM-DD' column strictly before a day.
type BeforeFilter struct {
	Column string
	Day    models.Date
}

// Valid reports whether a day is set.
func (f *BeforeFilter) Valid() bool {
	return f.Column != "" && !f.Day.IsZero()
}

// SQL returns the SQL fragment for the strict comparison.
func (f *BeforeFilter) SQL() string {
	return f.Column + " < ?"
}

// Args returns the arguments for the strict comparison.
func (f *BeforeFilter) Args() []interface{} {
	return []interface{}{f.Day.String()}
}

// FilterBuilder builds SQL filter conditions from multiple filters.
// Invalid filters are dropped.
type FilterBuilder struct {
	filters []Filter
}

// NewFilterBuilder creates a new FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]Filter, 0),
	}
}

// Equal adds an equality filter. Empty values are ignored.
func (fb *FilterBuilder) Equal(column, value string) *FilterBuilder {
	return fb.add(&EqualFilter{Column: column, Value: value})
}

// DateRange adds an inclusive date range filter.
func (fb *FilterBuilder) DateRange(column string, from, to models.Date) *FilterBuilder {
	return fb.add(&DateRangeFilter{Column: column, From: from, To: to})
}

// Before adds a strictly-before-day filter.
func (fb *FilterBuilder) Before(column string, day models.Date) *FilterBuilder {
	return fb.add(&BeforeFilter{Column: column, Day: day})
}

func (fb *FilterBuilder) add(f Filter) *FilterBuilder {
	if f.Valid() {
		fb.filters = append(fb.filters, f)
	}
	return fb
}

// HasFilters returns true if any filters have been added.
func (fb *FilterBuilder) HasFilters() bool {
	return len(fb.filters) > 0
}

// Count returns the number of filters.
func (fb *FilterBuilder) Count() int {
	return len(fb.filters)
}

// Build builds the SQL WHERE fragment and returns the arguments.
func (fb *FilterBuilder) Build() (string, []interface{}) {
	if !fb.HasFilters() {
		return "", nil
	}

	var sqlParts []string
	var args []interface{}

	for _, filter := range fb.filters {
		sqlParts = append(sqlParts, filter.SQL())
		args = append(args, filter.Args()...)
	}

	return strings.Join(sqlParts, " AND "), args
}

// Where returns Build prefixed with WHERE, or "" without filters.
func (fb *FilterBuilder) Where() (string, []interface{}) {
	sql, args := fb.Build()
	if sql == "" {
		return "", nil
	}
	return " WHERE " + sql, args
}

// String returns a string representation of the filters (for debugging).
func (fb *FilterBuilder) String() string {
	if !fb.HasFilters() {
		return "(no filters)"
	}

	var parts []string
	for _, filter := range fb.filters {
		parts = append(parts, fmt.Sprintf("%T", filter))
	}
	return strings.Join(parts, ", ")
}

// ValidateDateRange validates an inclusive date range; zero bounds are open.
func ValidateDateRange(from, to models.Date) error {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return fmt.Errorf("invalid date range: from=%s, to=%s", from, to)
	}
	return nil
}

// =====================================================
// Lending and reminder filters
// =====================================================

// LendingFilter selects lending records. Zero fields match everything.
type LendingFilter struct {
	OwnerID string
	ItemID  models.UUID
	Status  models.LendingStatus
	// DueBefore keeps records whose expected return date is strictly earlier.
	DueBefore models.Date
}

// Builder converts the filter into SQL conditions.
func (f LendingFilter) Builder() *FilterBuilder {
	return NewFilterBuilder().
		Equal("owner_id", f.OwnerID).
		Equal("item_id", string(f.ItemID)).
		Equal("status", string(f.Status)).
		Before("expected_return_date", f.DueBefore)
}

// ReminderFilter selects reminders. Zero fields match everything; From and
// To bound the remind date inclusively.
type ReminderFilter struct {
	OwnerID string
	ItemID  models.UUID
	Type    models.ReminderType
	Status  models.ReminderStatus
	From    models.Date
	To      models.Date
	// DueBefore keeps reminders dated strictly earlier.
	DueBefore models.Date
}

// Builder converts the filter into SQL conditions.
func (f ReminderFilter) Builder() *FilterBuilder {
	return NewFilterBuilder().
		Equal("owner_id", f.OwnerID).
		Equal("item_id", string(f.ItemID)).
		Equal("type", string(f.Type)).
		Equal("status", string(f.Status)).
		DateRange("remind_date", f.From, f.To).
		Before("remind_date", f.DueBefore)
}
