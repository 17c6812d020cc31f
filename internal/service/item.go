package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/templui/marketplace/internal/model"
	"github.com/templui/marketplace/internal/repository"
	"github.com/templui/marketplace/internal/storage"
	"github.com/templui/marketplace/internal/validation"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrItemSold     = fmt.Errorf("%w: item is sold", ErrForbidden)
	ErrConflict     = errors.New("item was modified concurrently")
	ErrInvalidInput = errors.New("invalid input")
)

type CreateItemInput struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// UpdateItemInput is a partial update. Nil fields keep the stored value.
// Hidden true hides the item, false makes it available again.
type UpdateItemInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Hidden      *bool            `json:"hidden"`
}

type AttachResult struct {
	Item      *model.Item `json:"item"`
	UploadURL string      `json:"uploadUrl"`
}

type ItemService struct {
	repo        repository.ItemRepository
	attachments storage.AttachmentStore
	now         func() time.Time
}

func NewItemService(repo repository.ItemRepository, attachments storage.AttachmentStore) *ItemService {
	return &ItemService{
		repo:        repo,
		attachments: attachments,
		now:         time.Now,
	}
}

func (s *ItemService) Create(ctx context.Context, userID string, input CreateItemInput) (*model.Item, error) {
	name := validation.NormalizeItemName(input.Name)
	description := normalizeDescription(input.Description)

	err := validateFields(name, description, input.Price)
	if err != nil {
		return nil, err
	}

	item := &model.Item{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		CreatedAt:   s.now(),
		Name:        name,
		Description: description,
		Price:       input.Price,
		Status:      model.ItemStatusAvailable,
	}

	item, err = s.repo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	slog.Info("item created", "item_id", item.ID, "user_id", userID)
	return item, nil
}

func (s *ItemService) ListMine(ctx context.Context, userID string) ([]*model.Item, error) {
	return s.repo.ByOwner(ctx, userID)
}

func (s *ItemService) ListVisible(ctx context.Context) ([]*model.Item, error) {
	return s.repo.Visible(ctx)
}

// Get returns an item to anyone while it is available. Hidden and sold items
// are only shown to the owner, and a sold item also to its buyer.
func (s *ItemService) Get(ctx context.Context, itemID, userID string) (*model.Item, error) {
	item, err := s.repo.ByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status.Visible() || (userID != "" && item.IsOwnedBy(userID)) {
		return item, nil
	}
	if item.Status == model.ItemStatusSold && userID != "" && lo.FromPtr(item.BuyerID) == userID {
		return item, nil
	}

	return nil, fmt.Errorf("%w: %s", repository.ErrItemNotFound, itemID)
}

func (s *ItemService) Update(ctx context.Context, itemID, userID string, input UpdateItemInput) (*model.Item, error) {
	item, err := s.ownedItem(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}

	if item.Status.Terminal() {
		return nil, ErrItemSold
	}

	fields := model.ItemFields{
		Name:        validation.NormalizeItemName(lo.FromPtrOr(input.Name, item.Name)),
		Description: lo.CoalesceOrEmpty(input.Description, item.Description),
		Price:       lo.FromPtrOr(input.Price, item.Price),
		Status:      item.Status,
	}
	fields.Description = normalizeDescription(fields.Description)

	if input.Hidden != nil {
		fields.Status = lo.Ternary(*input.Hidden, model.ItemStatusHidden, model.ItemStatusAvailable)
	}

	err = validateFields(fields.Name, fields.Description, fields.Price)
	if err != nil {
		return nil, err
	}
	if !item.Status.CanTransitionTo(fields.Status) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrForbidden, item.Status, fields.Status)
	}

	updated, err := s.repo.UpdateFields(ctx, item.Key(), fields, item.Status)
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return nil, s.lostRace(ctx, item)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	if updated.Status != item.Status {
		slog.Info("item status changed", "item_id", item.ID, "from", item.Status, "to", updated.Status)
	}

	return updated, nil
}

// Buy sells the item to userID. Only the first buyer succeeds; every later
// attempt fails with ErrConflict, including a retry by the same buyer.
func (s *ItemService) Buy(ctx context.Context, itemID, userID string) (*model.Item, error) {
	item, err := s.repo.ByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status.Terminal() {
		return nil, fmt.Errorf("%w: item %s is already sold", ErrConflict, itemID)
	}
	if item.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: cannot buy your own item", ErrForbidden)
	}

	sold, err := s.repo.SetBuyer(ctx, item.Key(), userID)
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return nil, fmt.Errorf("%w: item %s is already sold", ErrConflict, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to buy item: %w", err)
	}

	slog.Info("item sold", "item_id", itemID, "buyer_id", userID)
	return sold, nil
}

// Attach issues an upload URL for the item image and records the public URL
// right away, before the client has uploaded anything.
func (s *ItemService) Attach(ctx context.Context, itemID, userID, contentType string) (*AttachResult, error) {
	err := validation.ValidateImageContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	item, err := s.ownedItem(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}

	uploadURL, err := s.attachments.UploadURL(ctx, item.ID, strings.ToLower(contentType))
	if err != nil {
		return nil, fmt.Errorf("failed to issue upload url: %w", err)
	}

	item, err = s.repo.SetAttachmentURL(ctx, item.Key(), s.attachments.PublicURL(item.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to save attachment url: %w", err)
	}

	return &AttachResult{Item: item, UploadURL: uploadURL}, nil
}

// Delete removes an owned item in any status together with its attachment.
func (s *ItemService) Delete(ctx context.Context, itemID, userID string) (bool, error) {
	item, err := s.ownedItem(ctx, itemID, userID)
	if err != nil {
		return false, err
	}

	deleted, err := s.repo.Delete(ctx, item)
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return false, fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}

	if deleted {
		slog.Info("item deleted", "item_id", itemID, "user_id", userID)
	}
	return deleted, nil
}

func (s *ItemService) ownedItem(ctx context.Context, itemID, userID string) (*model.Item, error) {
	item, err := s.repo.ByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if !item.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: item %s belongs to another user", ErrForbidden, itemID)
	}

	return item, nil
}

// lostRace explains a failed compare-and-set on update: the item was sold or
// its status changed after it was read.
func (s *ItemService) lostRace(ctx context.Context, read *model.Item) error {
	current, err := s.repo.ByID(ctx, read.ID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return ErrItemSold
	}
	return fmt.Errorf("%w: item %s is now %s", ErrConflict, read.ID, current.Status)
}

func validateFields(name string, description *string, price decimal.Decimal) error {
	err := errors.Join(
		validation.ValidateItemName(name),
		validation.ValidateItemDescription(description),
		validation.ValidatePrice(price),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// normalizeDescription stores an empty description as absent.
func normalizeDescription(description *string) *string {
	if description == nil || strings.TrimSpace(*description) == "" {
		return nil
	}
	return description
}
