package server

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	gridmiddleware "github.com/TBMCG/RSS-feed/internal/middleware"
)

const defaultCategoryColor = "#6366f1"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// CategoryRequest is the body of category create and update requests.
type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.opts.Categories.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	gridmiddleware.WriteJSON(w, http.StatusOK, categories)
}

func (h *handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.Name == nil {
		h.writeServiceError(w, r, validationError("name is required"))
		return
	}

	category := &models.Category{Color: defaultCategoryColor}
	if err := applyCategoryRequest(category, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.opts.Categories.Create(r.Context(), category); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "category created", slog.String("category", category.Name), slog.String("by", actor(r)))
	gridmiddleware.WriteJSON(w, http.StatusCreated, category)
}

func (h *handlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.opts.Categories.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := applyCategoryRequest(category, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.opts.Categories.Update(r.Context(), category); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "category updated", slog.String("category", category.Name), slog.String("by", actor(r)))
	gridmiddleware.WriteJSON(w, http.StatusOK, category)
}

func (h *handlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.opts.Categories.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "category deleted", slog.String("category_id", id), slog.String("by", actor(r)))
	gridmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func applyCategoryRequest(category *models.Category, req *CategoryRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return validationError("name must not be empty")
		}
		category.Name = name
	}
	if req.Description != nil {
		category.Description = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		if !hexColor.MatchString(*req.Color) {
			return validationError("color must look like #rrggbb")
		}
		category.Color = *req.Color
	}
	return nil
}
