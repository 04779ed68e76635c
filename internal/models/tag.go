package models

import "time"

// Tag represents an owner-scoped label attached to spaces and entities.
type Tag struct {
	ID        UUID   `db:"id" json:"id"`
	OwnerID   string `db:"owner_id" json:"owner_id"`
	Name      string `db:"name" json:"name"`
	Color     string `db:"color" json:"color"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Tag.
func (Tag) TableName() string {
	return "tags"
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now().Unix()
}

// NodeImage is a stored image reference owned by a node. The file itself is
// handled by the upload layer; only the reference lives here.
type NodeImage struct {
	ID        UUID     `db:"id" json:"id"`
	Kind      NodeKind `db:"node_kind" json:"node_kind"`
	NodeID    UUID     `db:"node_id" json:"node_id"`
	OwnerID   string   `db:"owner_id" json:"owner_id"`
	FilePath  string   `db:"file_path" json:"file_path"`
	CreatedAt int64    `db:"created_at" json:"created_at"`
}

// TableName returns the table name for NodeImage.
func (NodeImage) TableName() string {
	return "node_images"
}
