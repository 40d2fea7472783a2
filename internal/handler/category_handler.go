package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracklight/tracklight-api/internal/dto"
	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
	"github.com/tracklight/tracklight-api/pkg/response"
)

type categoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Tree(ctx context.Context) ([]*models.CategoryNode, error)
	Create(ctx context.Context, req dto.CreateCategoryRequest) (*models.Category, error)
	Update(ctx context.Context, id string, req dto.UpdateCategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, id string) error
}

// CategoryHandler exposes category CRUD and the tree view.
type CategoryHandler struct {
	service categoryService
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(service categoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// List returns categories in classification order.
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Tree returns the nested category tree including the virtual
// uncategorized node.
func (h *CategoryHandler) Tree(c *gin.Context) {
	tree, err := h.service.Tree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree, nil)
}

// Create registers a category.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req dto.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	category, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

// Update rewrites a category.
func (h *CategoryHandler) Update(c *gin.Context) {
	var req dto.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	category, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, category, nil)
}

// Delete removes a leaf category.
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
