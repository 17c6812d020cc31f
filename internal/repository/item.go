package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/marketplace/internal/model"
	"github.com/templui/marketplace/internal/storage"
)

var (
	ErrItemNotFound = errors.New("item not found")
	// ErrDataIntegrity means an id resolved to more than one record.
	ErrDataIntegrity = errors.New("item id is not unique")
	// ErrStorage wraps every database I/O failure.
	ErrStorage = errors.New("item storage failure")
	// ErrPreconditionFailed means the record changed between read and write.
	ErrPreconditionFailed = errors.New("item changed concurrently")
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) (*model.Item, error)
	ByID(ctx context.Context, id string) (*model.Item, error)
	ByOwner(ctx context.Context, ownerID string) ([]*model.Item, error)
	Visible(ctx context.Context) ([]*model.Item, error)

	// UpdateFields overwrites name, description, price and status, provided the
	// stored status still equals expected.
	UpdateFields(ctx context.Context, key model.ItemKey, fields model.ItemFields, expected model.ItemStatus) (*model.Item, error)

	// SetBuyer moves the item to Sold unless it is already Sold.
	SetBuyer(ctx context.Context, key model.ItemKey, buyerID string) (*model.Item, error)

	SetAttachmentURL(ctx context.Context, key model.ItemKey, url string) (*model.Item, error)

	// Delete removes the attachment object and then the record, provided the
	// stored status still equals item.Status. It reports false without an error
	// when the backend rejects the delete statement.
	Delete(ctx context.Context, item *model.Item) (bool, error)
}

type itemRepository struct {
	db          *sqlx.DB
	attachments storage.AttachmentStore
}

func NewItemRepository(db *sqlx.DB, attachments storage.AttachmentStore) ItemRepository {
	return &itemRepository{
		db:          db,
		attachments: attachments,
	}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item.ID == "" {
		return nil, errors.New("item id is empty")
	}
	if item.OwnerID == "" {
		return nil, errors.New("item owner is empty")
	}

	// Both backends keep microseconds; the key must round-trip exactly.
	item.CreatedAt = item.CreatedAt.UTC().Truncate(time.Microsecond)

	query := `INSERT INTO items (id, owner_id, created_at, name, description, price, status, buyer_id, attachment_url)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.OwnerID,
		item.CreatedAt,
		item.Name,
		item.Description,
		item.Price,
		item.Status,
		item.BuyerID,
		item.AttachmentURL,
	)
	if err != nil {
		return nil, storageErr("insert item", err)
	}

	return item, nil
}

func (r *itemRepository) ByID(ctx context.Context, id string) (*model.Item, error) {
	var items []*model.Item
	query := `SELECT * FROM items WHERE id = $1 LIMIT 2`

	err := r.db.SelectContext(ctx, &items, query, id)
	if err != nil {
		return nil, storageErr("select item", err)
	}

	switch len(items) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	case 1:
		return items[0], nil
	default:
		slog.Error("item id resolved to multiple records", "item_id", id)
		return nil, fmt.Errorf("%w: %s", ErrDataIntegrity, id)
	}
}

func (r *itemRepository) ByOwner(ctx context.Context, ownerID string) ([]*model.Item, error) {
	var items []*model.Item
	query := `SELECT * FROM items WHERE owner_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &items, query, ownerID)
	if err != nil {
		return nil, storageErr("select owner items", err)
	}

	return items, nil
}

func (r *itemRepository) Visible(ctx context.Context) ([]*model.Item, error) {
	var items []*model.Item
	query := `SELECT * FROM items WHERE status = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &items, query, model.ItemStatusAvailable)
	if err != nil {
		return nil, storageErr("select visible items", err)
	}

	return items, nil
}

func (r *itemRepository) UpdateFields(ctx context.Context, key model.ItemKey, fields model.ItemFields, expected model.ItemStatus) (*model.Item, error) {
	if fields.Status == model.ItemStatusSold {
		return nil, errors.New("status sold is only reachable through SetBuyer")
	}

	query := `UPDATE items
	          SET name = $1, description = $2, price = $3, status = $4
	          WHERE id = $5 AND created_at = $6 AND status = $7`

	return withTx(ctx, r.db, func(tx *sqlx.Tx) (*model.Item, error) {
		return r.casUpdate(ctx, tx, key, query,
			fields.Name,
			fields.Description,
			fields.Price,
			fields.Status,
			key.ID,
			key.CreatedAt,
			expected,
		)
	})
}

func (r *itemRepository) SetBuyer(ctx context.Context, key model.ItemKey, buyerID string) (*model.Item, error) {
	if buyerID == "" {
		return nil, errors.New("buyer id is empty")
	}

	// Compare-and-set: only the first buyer flips the status.
	query := `UPDATE items
	          SET status = $1, buyer_id = $2
	          WHERE id = $3 AND created_at = $4 AND status <> $5`

	return withTx(ctx, r.db, func(tx *sqlx.Tx) (*model.Item, error) {
		return r.casUpdate(ctx, tx, key, query,
			model.ItemStatusSold,
			buyerID,
			key.ID,
			key.CreatedAt,
			model.ItemStatusSold,
		)
	})
}

func (r *itemRepository) SetAttachmentURL(ctx context.Context, key model.ItemKey, url string) (*model.Item, error) {
	query := `UPDATE items SET attachment_url = $1 WHERE id = $2 AND created_at = $3`

	return withTx(ctx, r.db, func(tx *sqlx.Tx) (*model.Item, error) {
		return r.casUpdate(ctx, tx, key, query, url, key.ID, key.CreatedAt)
	})
}

func (r *itemRepository) Delete(ctx context.Context, item *model.Item) (bool, error) {
	key := item.Key()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, storageErr("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `DELETE FROM items WHERE id = $1 AND created_at = $2 AND status = $3`
	result, err := tx.ExecContext(ctx, query, key.ID, key.CreatedAt, item.Status)
	if err != nil {
		slog.Error("item delete rejected by backend", "error", err, "item_id", item.ID)
		return false, nil
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("delete item", err)
	}
	if rows == 0 {
		return false, r.missReason(ctx, tx, key)
	}

	// The object goes first; the record delete only commits once it is gone.
	err = r.removeAttachment(ctx, item.ID)
	if err != nil {
		return false, err
	}

	err = tx.Commit()
	if err != nil {
		return false, storageErr("commit delete", err)
	}

	return true, nil
}

func (r *itemRepository) removeAttachment(ctx context.Context, itemID string) error {
	if r.attachments == nil {
		return nil
	}

	exists, err := r.attachments.Exists(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to check attachment: %w", err)
	}
	if !exists {
		return nil
	}

	err = r.attachments.Delete(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	slog.Info("attachment deleted", "item_id", itemID)
	return nil
}

// casUpdate runs a guarded UPDATE and returns the post-update record.
// When no row matches it tells a missing record from a failed guard.
func (r *itemRepository) casUpdate(ctx context.Context, tx *sqlx.Tx, key model.ItemKey, query string, args ...any) (*model.Item, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("update item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, storageErr("update item", err)
	}
	if rows == 0 {
		return nil, r.missReason(ctx, tx, key)
	}

	item := &model.Item{}
	err = tx.GetContext(ctx, item, `SELECT * FROM items WHERE id = $1 AND created_at = $2`, key.ID, key.CreatedAt)
	if err != nil {
		return nil, storageErr("reload item", err)
	}

	return item, nil
}

func (r *itemRepository) missReason(ctx context.Context, tx *sqlx.Tx, key model.ItemKey) error {
	var status model.ItemStatus
	err := tx.GetContext(ctx, &status, `SELECT status FROM items WHERE id = $1 AND created_at = $2`, key.ID, key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrItemNotFound, key.ID)
	}
	if err != nil {
		return storageErr("check item", err)
	}

	return fmt.Errorf("%w: %s is %s", ErrPreconditionFailed, key.ID, status)
}
