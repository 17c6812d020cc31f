package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/templui/marketplace/internal/ctxkeys"
	"github.com/templui/marketplace/internal/model"
	"github.com/templui/marketplace/internal/service"
)

type ItemHandler struct {
	itemService *service.ItemService
}

func NewItemHandler(itemService *service.ItemService) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
	}
}

type createItemRequest struct {
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

type attachRequest struct {
	ContentType string `json:"contentType"`
}

type itemResponse struct {
	Item *model.Item `json:"item"`
}

type itemsResponse struct {
	Items []*model.Item `json:"items"`
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	var req createItemRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Price == nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "price is required")
		return
	}

	item, err := h.itemService.Create(r.Context(), userID, service.CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, itemResponse{Item: item})
}

func (h *ItemHandler) ListVisible(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.ListVisible(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: nonNil(items)})
}

func (h *ItemHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	items, err := h.itemService.ListMine(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: nonNil(items)})
}

// Get works for anonymous callers too; hidden and sold items need the right user.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.itemService.Get(r.Context(), r.PathValue("id"), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{Item: item})
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	var req service.UpdateItemInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	item, err := h.itemService.Update(r.Context(), r.PathValue("id"), userID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{Item: item})
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())
	itemID := r.PathValue("id")

	deleted, err := h.itemService.Delete(r.Context(), itemID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		slog.Warn("item delete not applied", "item_id", itemID, "user_id", userID)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *ItemHandler) Attach(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	var req attachRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	result, err := h.itemService.Attach(r.Context(), r.PathValue("id"), userID, req.ContentType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ItemHandler) Buy(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.UserID(r.Context())

	item, err := h.itemService.Buy(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{Item: item})
}

func nonNil(items []*model.Item) []*model.Item {
	if items == nil {
		return []*model.Item{}
	}
	return items
}
