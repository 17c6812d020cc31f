package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

// remember to add new statuses to validItemStatuses
const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusHidden    ItemStatus = "hidden"
	ItemStatusSold      ItemStatus = "sold"
)

var validItemStatuses = map[ItemStatus]struct{}{
	ItemStatusAvailable: {},
	ItemStatusHidden:    {},
	ItemStatusSold:      {},
}

func ParseItemStatus(s string) (ItemStatus, error) {
	status := ItemStatus(s)
	if _, ok := validItemStatuses[status]; ok {
		return status, nil
	}
	return "", fmt.Errorf("invalid item status %q", s)
}

// Visible reports whether the item shows up in public listings.
func (s ItemStatus) Visible() bool {
	return s == ItemStatusAvailable
}

// Terminal reports whether no further transitions are allowed.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusSold
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Staying in Available or Hidden is allowed so partial updates can keep the status.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	switch s {
	case ItemStatusAvailable, ItemStatusHidden:
		_, ok := validItemStatuses[next]
		return ok
	default:
		return false
	}
}

func (s *ItemStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ItemStatus", src)
	}

	status, err := ParseItemStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (s ItemStatus) Value() (driver.Value, error) {
	if _, ok := validItemStatuses[s]; !ok {
		return nil, fmt.Errorf("invalid item status %q", string(s))
	}
	return string(s), nil
}

// Item is a single marketplace listing.
// The storage key is (ID, CreatedAt); ID alone is also unique.
type Item struct {
	ID            string          `db:"id" json:"id"`
	OwnerID       string          `db:"owner_id" json:"ownerId"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Status        ItemStatus      `db:"status" json:"status"`
	BuyerID       *string         `db:"buyer_id" json:"buyerId,omitempty"`
	AttachmentURL *string         `db:"attachment_url" json:"attachmentUrl,omitempty"`
}

func (i *Item) Key() ItemKey {
	return ItemKey{ID: i.ID, CreatedAt: i.CreatedAt}
}

func (i *Item) IsOwnedBy(userID string) bool {
	return i.OwnerID == userID
}

func (i *Item) HasAttachment() bool {
	return i.AttachmentURL != nil && *i.AttachmentURL != ""
}

type ItemKey struct {
	ID        string
	CreatedAt time.Time
}

// ItemFields is the owner-mutable field set written by a full update.
type ItemFields struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Status      ItemStatus
}
