// Package db provides CRUD repository operations for the inventory data models.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/uuid"
)

// maxInArgs bounds the number of placeholders in one IN list.
const maxInArgs = 500

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository provides CRUD operations for all models. A Repository returned
// to an InTx callback is bound to that transaction.
type Repository struct {
	db      *DB
	q       querier
	dialect Dialect
	inTx    bool
}

// NewRepository creates a new Repository instance.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, q: db.DB, dialect: db.Dialect}
}

// InTx runs fn against a transaction-bound repository. The transaction is
// committed when fn returns nil and rolled back on error or panic. Calling
// InTx on a repository that is already inside a transaction joins it.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&Repository{db: r.db, q: tx, dialect: r.dialect, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// requireAffected turns a zero-row write into sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullableUUID(ns sql.NullString) *models.UUID {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	id := models.UUID(ns.String)
	return &id
}

func uuidArg(id *models.UUID) interface{} {
	if id == nil || *id == "" {
		return nil
	}
	return string(*id)
}

func tableFor(kind models.NodeKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown node kind: %q", kind)
	}
	return kind.TableName(), nil
}

func uuidArgs(ids []models.UUID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}

// chunks splits ids into slices of at most maxInArgs.
func chunks(ids []models.UUID) [][]models.UUID {
	var out [][]models.UUID
	for len(ids) > maxInArgs {
		out = append(out, ids[:maxInArgs])
		ids = ids[maxInArgs:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// =====================================================
// Node Operations
// =====================================================

const nodeColumns = `id, owner_id, parent_id, name, description, level, path, created_at, updated_at`

func scanNode(s rowScanner, kind models.NodeKind) (*models.Node, error) {
	var n models.Node
	var parent, description sql.NullString
	if err := s.Scan(&n.ID, &n.OwnerID, &parent, &n.Name, &description,
		&n.Level, &n.Path, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Kind = kind
	n.ParentID = nullableUUID(parent)
	n.Description = description.String
	return &n, nil
}

func (r *Repository) scanNodes(rows *sql.Rows, kind models.NodeKind) ([]*models.Node, error) {
	defer rows.Close()
	var nodes []*models.Node
	for rows.Next() {
		n, err := scanNode(rows, kind)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CreateNode inserts a node into its kind's table. ID and timestamps are
// assigned when empty; Level and Path must already be placed.
func (r *Repository) CreateNode(ctx context.Context, n *models.Node) error {
	table, err := tableFor(n.Kind)
	if err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = models.UUID(uuid.New())
	}
	now := time.Now().Unix()
	n.CreatedAt = now
	n.UpdatedAt = now

	query := `INSERT INTO ` + table + ` (` + nodeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.exec(ctx, query, n.ID, n.OwnerID, uuidArg(n.ParentID), n.Name, n.Description,
		n.Level, n.Path, n.CreatedAt, n.UpdatedAt)
	return err
}

// GetNode retrieves an owner's node by ID. Returns sql.ErrNoRows when absent.
func (r *Repository) GetNode(ctx context.Context, kind models.NodeKind, ownerID string, id models.UUID) (*models.Node, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + nodeColumns + ` FROM ` + table + ` WHERE id = ? AND owner_id = ?`
	return scanNode(r.queryRow(ctx, query, id, ownerID), kind)
}

// ListNodes returns every node of kind owned by ownerID.
func (r *Repository) ListNodes(ctx context.Context, kind models.NodeKind, ownerID string) ([]*models.Node, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + nodeColumns + ` FROM ` + table + ` WHERE owner_id = ? ORDER BY level, name`
	rows, err := r.query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return r.scanNodes(rows, kind)
}

// GetNodesByIDs returns the owner's nodes among ids, in no particular order.
func (r *Repository) GetNodesByIDs(ctx context.Context, kind models.NodeKind, ownerID string, ids []models.UUID) ([]*models.Node, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var nodes []*models.Node
	for _, chunk := range chunks(ids) {
		query := `SELECT ` + nodeColumns + ` FROM ` + table +
			` WHERE owner_id = ? AND id IN (` + Placeholders(len(chunk)) + `)`
		args := append([]interface{}{ownerID}, uuidArgs(chunk)...)
		rows, err := r.query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		batch, err := r.scanNodes(rows, kind)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, batch...)
	}
	return nodes, nil
}

// ListChildren returns the direct children of a node.
func (r *Repository) ListChildren(ctx context.Context, kind models.NodeKind, ownerID string, parentID models.UUID) ([]*models.Node, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + nodeColumns + ` FROM ` + table + ` WHERE owner_id = ? AND parent_id = ? ORDER BY name`
	rows, err := r.query(ctx, query, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	return r.scanNodes(rows, kind)
}

// CountChildren returns the number of direct children of a node.
func (r *Repository) CountChildren(ctx context.Context, kind models.NodeKind, ownerID string, parentID models.UUID) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var count int
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE owner_id = ? AND parent_id = ?`
	err = r.queryRow(ctx, query, ownerID, parentID).Scan(&count)
	return count, err
}

// UpdateNodePosition persists parent_id, level and path of a node.
func (r *Repository) UpdateNodePosition(ctx context.Context, n *models.Node) error {
	table, err := tableFor(n.Kind)
	if err != nil {
		return err
	}
	n.Touch()
	query := `UPDATE ` + table + ` SET parent_id = ?, level = ?, path = ?, updated_at = ? WHERE id = ? AND owner_id = ?`
	res, err := r.exec(ctx, query, uuidArg(n.ParentID), n.Level, n.Path, n.UpdatedAt, n.ID, n.OwnerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateNodeDetails persists the name and description of a node.
func (r *Repository) UpdateNodeDetails(ctx context.Context, n *models.Node) error {
	table, err := tableFor(n.Kind)
	if err != nil {
		return err
	}
	n.Touch()
	query := `UPDATE ` + table + ` SET name = ?, description = ?, updated_at = ? WHERE id = ? AND owner_id = ?`
	res, err := r.exec(ctx, query, n.Name, n.Description, n.UpdatedAt, n.ID, n.OwnerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteNode removes a node row. Returns sql.ErrNoRows when absent.
func (r *Repository) DeleteNode(ctx context.Context, kind models.NodeKind, ownerID string, id models.UUID) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, `DELETE FROM `+table+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// =====================================================
// Item Operations
// =====================================================

const itemColumns = nodeColumns + `, space_id, status, purchase_date, warranty_months, warranty_end_date, expiry_date`

func scanItem(s rowScanner) (*models.Item, error) {
	var item models.Item
	var parent, description, space sql.NullString
	if err := s.Scan(&item.ID, &item.OwnerID, &parent, &item.Name, &description,
		&item.Level, &item.Path, &item.CreatedAt, &item.UpdatedAt,
		&space, &item.Status, &item.PurchaseDate, &item.WarrantyMonths,
		&item.WarrantyEndDate, &item.ExpiryDate); err != nil {
		return nil, err
	}
	item.Kind = models.KindEntity
	item.ParentID = nullableUUID(parent)
	item.SpaceID = nullableUUID(space)
	item.Description = description.String
	return &item, nil
}

// CreateItem inserts an entity row together with its inventory facts.
func (r *Repository) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = models.UUID(uuid.New())
	}
	if item.Status == "" {
		item.Status = models.ItemStatusNormal
	}
	item.Kind = models.KindEntity
	now := time.Now().Unix()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `INSERT INTO entities (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query, item.ID, item.OwnerID, uuidArg(item.ParentID), item.Name, item.Description,
		item.Level, item.Path, item.CreatedAt, item.UpdatedAt,
		uuidArg(item.SpaceID), item.Status, item.PurchaseDate, item.WarrantyMonths,
		item.WarrantyEndDate, item.ExpiryDate)
	return err
}

// GetItem retrieves an owner's item by ID. Returns sql.ErrNoRows when absent.
func (r *Repository) GetItem(ctx context.Context, ownerID string, id models.UUID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM entities WHERE id = ? AND owner_id = ?`
	return scanItem(r.queryRow(ctx, query, id, ownerID))
}

// LockItem is GetItem that also holds a row lock on the item until the
// surrounding transaction ends. Callers that check and then change lending
// state use it to serialize on the item.
func (r *Repository) LockItem(ctx context.Context, ownerID string, id models.UUID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM entities WHERE id = ? AND owner_id = ?` + r.dialect.ForUpdate()
	return scanItem(r.queryRow(ctx, query, id, ownerID))
}

// ListItemsByIDs returns the items among ids regardless of owner.
func (r *Repository) ListItemsByIDs(ctx context.Context, ids []models.UUID) ([]*models.Item, error) {
	var items []*models.Item
	for _, chunk := range chunks(ids) {
		query := `SELECT ` + itemColumns + ` FROM entities WHERE id IN (` + Placeholders(len(chunk)) + `)`
		rows, err := r.query(ctx, query, uuidArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			items = append(items, item)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

// UpdateItemDetails persists the editable inventory facts of an item.
// Tree position is changed only through UpdateNodePosition.
func (r *Repository) UpdateItemDetails(ctx context.Context, item *models.Item) error {
	item.Touch()
	query := `
	UPDATE entities SET name = ?, description = ?, space_id = ?, status = ?, purchase_date = ?,
		warranty_months = ?, warranty_end_date = ?, expiry_date = ?, updated_at = ?
	WHERE id = ? AND owner_id = ?
	`
	res, err := r.exec(ctx, query, item.Name, item.Description, uuidArg(item.SpaceID), item.Status,
		item.PurchaseDate, item.WarrantyMonths, item.WarrantyEndDate, item.ExpiryDate, item.UpdatedAt,
		item.ID, item.OwnerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetItemStatus sets the visible status of an item.
func (r *Repository) SetItemStatus(ctx context.Context, ownerID string, id models.UUID, status models.ItemStatus) error {
	query := `UPDATE entities SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`
	res, err := r.exec(ctx, query, status, time.Now().Unix(), id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetItemStatusIf sets the item status to next only while it is still from.
// Reports whether a row changed.
func (r *Repository) SetItemStatusIf(ctx context.Context, ownerID string, id models.UUID, from, next models.ItemStatus) (bool, error) {
	query := `UPDATE entities SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ? AND status = ?`
	res, err := r.exec(ctx, query, next, time.Now().Unix(), id, ownerID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClearItemSpace detaches every item of an owner from a deleted space.
func (r *Repository) ClearItemSpace(ctx context.Context, ownerID string, spaceID models.UUID) (int64, error) {
	query := `UPDATE entities SET space_id = NULL, updated_at = ? WHERE owner_id = ? AND space_id = ?`
	res, err := r.exec(ctx, query, time.Now().Unix(), ownerID, spaceID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =====================================================
// Tag and Image Operations
// =====================================================

// CreateTag creates a new owner-scoped tag.
func (r *Repository) CreateTag(ctx context.Context, tag *models.Tag) error {
	now := time.Now().Unix()
	tag.ID = models.UUID(uuid.New())
	tag.CreatedAt = now
	tag.UpdatedAt = now

	query := `INSERT INTO tags (id, owner_id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query, tag.ID, tag.OwnerID, tag.Name, tag.Color, tag.CreatedAt, tag.UpdatedAt)
	return err
}

// GetTagByName retrieves an owner's tag by name.
func (r *Repository) GetTagByName(ctx context.Context, ownerID, name string) (*models.Tag, error) {
	var tag models.Tag
	var color sql.NullString
	query := `SELECT id, owner_id, name, color, created_at, updated_at FROM tags WHERE owner_id = ? AND name = ?`
	err := r.queryRow(ctx, query, ownerID, name).Scan(&tag.ID, &tag.OwnerID, &tag.Name, &color, &tag.CreatedAt, &tag.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tag.Color = color.String
	return &tag, nil
}

// ListTags returns all tags of an owner by name.
func (r *Repository) ListTags(ctx context.Context, ownerID string) ([]*models.Tag, error) {
	query := `SELECT id, owner_id, name, color, created_at, updated_at FROM tags WHERE owner_id = ? ORDER BY name`
	rows, err := r.query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		var tag models.Tag
		var color sql.NullString
		if err := rows.Scan(&tag.ID, &tag.OwnerID, &tag.Name, &color, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return nil, err
		}
		tag.Color = color.String
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// AttachTag links a tag to a node. Attaching twice is a no-op.
func (r *Repository) AttachTag(ctx context.Context, kind models.NodeKind, nodeID, tagID models.UUID) error {
	var exists int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM node_tags WHERE node_kind = ? AND node_id = ? AND tag_id = ?`,
		kind, nodeID, tagID).Scan(&exists)
	if err != nil || exists > 0 {
		return err
	}
	_, err = r.exec(ctx, `INSERT INTO node_tags (node_kind, node_id, tag_id) VALUES (?, ?, ?)`, kind, nodeID, tagID)
	return err
}

// DetachNodeTags removes every tag link of a node.
func (r *Repository) DetachNodeTags(ctx context.Context, kind models.NodeKind, nodeID models.UUID) error {
	_, err := r.exec(ctx, `DELETE FROM node_tags WHERE node_kind = ? AND node_id = ?`, kind, nodeID)
	return err
}

// TagNamesFor returns tag names per node for a batch of nodes, sorted by name.
func (r *Repository) TagNamesFor(ctx context.Context, kind models.NodeKind, nodeIDs []models.UUID) (map[models.UUID][]string, error) {
	result := make(map[models.UUID][]string)
	for _, chunk := range chunks(nodeIDs) {
		query := `
		SELECT nt.node_id, t.name FROM node_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.node_kind = ? AND nt.node_id IN (` + Placeholders(len(chunk)) + `)
		ORDER BY t.name`
		args := append([]interface{}{kind}, uuidArgs(chunk)...)
		rows, err := r.query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id models.UUID
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, err
			}
			result[id] = append(result[id], name)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AddNodeImage records an image reference for a node.
func (r *Repository) AddNodeImage(ctx context.Context, img *models.NodeImage) error {
	img.ID = models.UUID(uuid.New())
	img.CreatedAt = time.Now().Unix()
	query := `INSERT INTO node_images (id, node_kind, node_id, owner_id, file_path, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query, img.ID, img.Kind, img.NodeID, img.OwnerID, img.FilePath, img.CreatedAt)
	return err
}

// ListNodeImages returns the image references of a node, oldest first.
func (r *Repository) ListNodeImages(ctx context.Context, kind models.NodeKind, nodeID models.UUID) ([]*models.NodeImage, error) {
	query := `SELECT id, node_kind, node_id, owner_id, file_path, created_at FROM node_images
	WHERE node_kind = ? AND node_id = ? ORDER BY created_at, id`
	rows, err := r.query(ctx, query, kind, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.NodeImage
	for rows.Next() {
		var img models.NodeImage
		if err := rows.Scan(&img.ID, &img.Kind, &img.NodeID, &img.OwnerID, &img.FilePath, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

// DeleteNodeImages removes every image reference of a node and returns the
// removed file paths so the caller can release the files.
func (r *Repository) DeleteNodeImages(ctx context.Context, kind models.NodeKind, nodeID models.UUID) ([]string, error) {
	images, err := r.ListNodeImages(ctx, kind, nodeID)
	if err != nil {
		return nil, err
	}
	if _, err := r.exec(ctx, `DELETE FROM node_images WHERE node_kind = ? AND node_id = ?`, kind, nodeID); err != nil {
		return nil, err
	}
	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.FilePath
	}
	return paths, nil
}

// =====================================================
// Lending Operations
// =====================================================

const lendingColumns = `id, owner_id, item_id, borrower, borrower_contact, lend_date, expected_return_date,
	actual_return_date, status, note, created_at, updated_at`

func scanLending(s rowScanner) (*models.LendingRecord, error) {
	var rec models.LendingRecord
	var contact, note sql.NullString
	if err := s.Scan(&rec.ID, &rec.OwnerID, &rec.ItemID, &rec.Borrower, &contact, &rec.LendDate,
		&rec.ExpectedReturnDate, &rec.ActualReturnDate, &rec.Status, &note,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.BorrowerContact = contact.String
	rec.Note = note.String
	return &rec, nil
}

// CreateLending creates a new lending record.
func (r *Repository) CreateLending(ctx context.Context, rec *models.LendingRecord) error {
	now := time.Now().Unix()
	rec.ID = models.UUID(uuid.New())
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `INSERT INTO lendings (` + lendingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query, rec.ID, rec.OwnerID, rec.ItemID, rec.Borrower, rec.BorrowerContact,
		rec.LendDate, rec.ExpectedReturnDate, rec.ActualReturnDate, rec.Status, rec.Note,
		rec.CreatedAt, rec.UpdatedAt)
	return err
}

// GetLending retrieves an owner's lending record by ID.
func (r *Repository) GetLending(ctx context.Context, ownerID string, id models.UUID) (*models.LendingRecord, error) {
	query := `SELECT ` + lendingColumns + ` FROM lendings WHERE id = ? AND owner_id = ?`
	return scanLending(r.queryRow(ctx, query, id, ownerID))
}

// ActiveLendingForItem returns the lending or overdue record of an item.
// Returns sql.ErrNoRows when the item is not lent.
func (r *Repository) ActiveLendingForItem(ctx context.Context, itemID models.UUID) (*models.LendingRecord, error) {
	query := `SELECT ` + lendingColumns + ` FROM lendings WHERE item_id = ? AND status IN (?, ?)
	ORDER BY created_at DESC LIMIT 1`
	return scanLending(r.queryRow(ctx, query, itemID, models.LendingStatusLending, models.LendingStatusOverdue))
}

// ListLendings returns the records matching filter, newest lend date first.
func (r *Repository) ListLendings(ctx context.Context, filter LendingFilter) ([]*models.LendingRecord, error) {
	where, args := filter.Builder().Where()
	rows, err := r.query(ctx, `SELECT `+lendingColumns+` FROM lendings`+where+` ORDER BY lend_date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.LendingRecord
	for rows.Next() {
		rec, err := scanLending(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateLending persists every mutable field of a lending record.
func (r *Repository) UpdateLending(ctx context.Context, rec *models.LendingRecord) error {
	rec.Touch()
	query := `
	UPDATE lendings SET borrower = ?, borrower_contact = ?, lend_date = ?, expected_return_date = ?,
		actual_return_date = ?, status = ?, note = ?, updated_at = ?
	WHERE id = ? AND owner_id = ?
	`
	res, err := r.exec(ctx, query, rec.Borrower, rec.BorrowerContact, rec.LendDate, rec.ExpectedReturnDate,
		rec.ActualReturnDate, rec.Status, rec.Note, rec.UpdatedAt, rec.ID, rec.OwnerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteLending removes a lending record.
func (r *Repository) DeleteLending(ctx context.Context, ownerID string, id models.UUID) error {
	res, err := r.exec(ctx, `DELETE FROM lendings WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkLendingsOverdue moves the given records from lending to overdue.
// Records no longer in lending are left alone. Returns the rows changed.
func (r *Repository) MarkLendingsOverdue(ctx context.Context, ids []models.UUID) (int64, error) {
	return r.transitionStatus(ctx, "lendings", ids, string(models.LendingStatusLending), string(models.LendingStatusOverdue))
}

// transitionStatus moves rows of table among ids from one status to another.
func (r *Repository) transitionStatus(ctx context.Context, table string, ids []models.UUID, from, next string) (int64, error) {
	var total int64
	now := time.Now().Unix()
	for _, chunk := range chunks(ids) {
		query := `UPDATE ` + table + ` SET status = ?, updated_at = ? WHERE status = ? AND id IN (` + Placeholders(len(chunk)) + `)`
		args := append([]interface{}{next, now, from}, uuidArgs(chunk)...)
		res, err := r.exec(ctx, query, args...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// =====================================================
// Reminder Operations
// =====================================================

const reminderColumns = `id, owner_id, type, item_id, title, content, remind_date, status, created_at, updated_at`

func scanReminder(s rowScanner) (*models.Reminder, error) {
	var rem models.Reminder
	var content sql.NullString
	if err := s.Scan(&rem.ID, &rem.OwnerID, &rem.Type, &rem.ItemID, &rem.Title, &content,
		&rem.RemindDate, &rem.Status, &rem.CreatedAt, &rem.UpdatedAt); err != nil {
		return nil, err
	}
	rem.Content = content.String
	return &rem, nil
}

// CreateReminder creates a new reminder. A duplicate (item, type, date) key
// fails with a unique violation; see IsUniqueViolation.
func (r *Repository) CreateReminder(ctx context.Context, rem *models.Reminder) error {
	now := time.Now().Unix()
	rem.ID = models.UUID(uuid.New())
	rem.CreatedAt = now
	rem.UpdatedAt = now

	query := `INSERT INTO reminders (` + reminderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query, rem.ID, rem.OwnerID, rem.Type, rem.ItemID, rem.Title, rem.Content,
		rem.RemindDate, rem.Status, rem.CreatedAt, rem.UpdatedAt)
	return err
}

// CreateReminderIfAbsent inserts rem unless a reminder with the same
// (item, type, date) key exists. Reports whether a row was inserted.
func (r *Repository) CreateReminderIfAbsent(ctx context.Context, rem *models.Reminder) (bool, error) {
	now := time.Now().Unix()
	id := models.UUID(uuid.New())

	query := r.dialect.InsertIgnore("reminders", reminderColumns, 10)
	res, err := r.exec(ctx, query, id, rem.OwnerID, rem.Type, rem.ItemID, rem.Title, rem.Content,
		rem.RemindDate, rem.Status, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	rem.ID = id
	rem.CreatedAt = now
	rem.UpdatedAt = now
	return true, nil
}

// GetReminder retrieves an owner's reminder by ID.
func (r *Repository) GetReminder(ctx context.Context, ownerID string, id models.UUID) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = ? AND owner_id = ?`
	return scanReminder(r.queryRow(ctx, query, id, ownerID))
}

// FindReminder looks a reminder up by its deduplication key.
func (r *Repository) FindReminder(ctx context.Context, key models.ReminderKey) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE item_id = ? AND type = ? AND remind_date = ?`
	return scanReminder(r.queryRow(ctx, query, key.ItemID, key.Type, key.RemindDate))
}

// ListReminders returns the reminders matching filter by remind date.
func (r *Repository) ListReminders(ctx context.Context, filter ReminderFilter) ([]*models.Reminder, error) {
	where, args := filter.Builder().Where()
	rows, err := r.query(ctx, `SELECT `+reminderColumns+` FROM reminders`+where+` ORDER BY remind_date, created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

// SetReminderStatus moves one reminder from one status to another. Reports
// whether the row was still in from.
func (r *Repository) SetReminderStatus(ctx context.Context, id models.UUID, from, next models.ReminderStatus) (bool, error) {
	n, err := r.transitionStatus(ctx, "reminders", []models.UUID{id}, string(from), string(next))
	return n > 0, err
}

// MarkRemindersSent moves the given pending reminders to sent.
func (r *Repository) MarkRemindersSent(ctx context.Context, ids []models.UUID) (int64, error) {
	return r.transitionStatus(ctx, "reminders", ids, string(models.ReminderPending), string(models.ReminderSent))
}

// DeletePendingReminders removes pending reminders of one type for an item,
// keeping those dated keep. Returns the number removed.
func (r *Repository) DeletePendingReminders(ctx context.Context, itemID models.UUID, typ models.ReminderType, keep []models.Date) (int64, error) {
	query := `DELETE FROM reminders WHERE item_id = ? AND type = ? AND status = ?`
	args := []interface{}{itemID, typ, models.ReminderPending}
	if len(keep) > 0 {
		query += ` AND remind_date NOT IN (` + Placeholders(len(keep)) + `)`
		for _, d := range keep {
			args = append(args, d.String())
		}
	}
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =====================================================
// Maintenance
// =====================================================

// Ping verifies the connection is alive.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
