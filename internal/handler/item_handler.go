package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

type itemService interface {
	List(ctx context.Context, search string) ([]models.Item, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	Create(ctx context.Context, req dto.ItemRequest) (*models.Item, error)
	Update(ctx context.Context, id string, req dto.ItemRequest) (*models.Item, error)
	Delete(ctx context.Context, id string) error
}

// ItemHandler manages the item catalog.
type ItemHandler struct {
	service itemService
}

// NewItemHandler constructs ItemHandler.
func NewItemHandler(service itemService) *ItemHandler {
	return &ItemHandler{service: service}
}

// List godoc
// @Summary List items
// @Tags Items
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /admin/items [get]
func (h *ItemHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Items retrieved", items, nil)
}

// Get godoc
// @Summary Get item
// @Tags Items
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /admin/items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "Item not found")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Item retrieved", item, nil)
}

// Create godoc
// @Summary Create item
// @Tags Items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/items [post]
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.ItemRequest
	if !bindJSON(c, &req, "invalid item payload") {
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Item created successfully", item)
}

// Update godoc
// @Summary Update item
// @Tags Items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Param payload body dto.ItemRequest true "Item payload"
// @Success 200 {object} response.Envelope
// @Router /admin/items/{id} [put]
func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "Item not found")
	if !ok {
		return
	}
	var req dto.ItemRequest
	if !bindJSON(c, &req, "invalid item payload") {
		return
	}
	item, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Item updated successfully", item, nil)
}

// Delete godoc
// @Summary Delete item
// @Tags Items
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /admin/items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id", "Item not found")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Item deleted successfully", nil, nil)
}
