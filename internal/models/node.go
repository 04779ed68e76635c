// Package models provides data model definitions for the inventory core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// NodeKind distinguishes the two hierarchies that share the node shape.
type NodeKind string

const (
	KindSpace  NodeKind = "space"
	KindEntity NodeKind = "entity"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	return k == KindSpace || k == KindEntity
}

// TableName returns the table holding nodes of this kind.
func (k NodeKind) TableName() string {
	if k == KindEntity {
		return "entities"
	}
	return "spaces"
}

// CascadesOnDelete reports whether deleting a node of this kind detaches its
// children (entities) instead of refusing the delete (spaces).
func (k NodeKind) CascadesOnDelete() bool {
	return k == KindEntity
}

// Node is a space or entity participating in a parent/child hierarchy.
// Level and Path are maintained by the tree service; Path lists ancestor ids
// root first and never contains the node's own id.
type Node struct {
	ID          UUID     `db:"id" json:"id"`
	Kind        NodeKind `db:"-" json:"kind"`
	OwnerID     string   `db:"owner_id" json:"owner_id"`
	ParentID    *UUID    `db:"parent_id" json:"parent_id"`
	Name        string   `db:"name" json:"name"`
	Description string   `db:"description" json:"description,omitempty"`
	Level       int      `db:"level" json:"level"`
	Path        string   `db:"path" json:"path"`
	CreatedAt   int64    `db:"created_at" json:"created_at"`
	UpdatedAt   int64    `db:"updated_at" json:"updated_at"`

	// Derived, never persisted.
	Tags     []string `db:"-" json:"tags,omitempty"`
	Children []*Node  `db:"-" json:"children,omitempty"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// ParentKey returns the parent id, or "" for a root.
func (n *Node) ParentKey() UUID {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// SetParent points the node at parent, or makes it a root when parent is "".
func (n *Node) SetParent(parent UUID) {
	if parent == "" {
		n.ParentID = nil
		return
	}
	p := parent
	n.ParentID = &p
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (n *Node) CreatedAtTime() time.Time {
	return time.Unix(n.CreatedAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (n *Node) Touch() {
	n.UpdatedAt = time.Now().Unix()
}
