package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/models"
	gridmiddleware "github.com/TBMCG/RSS-feed/internal/middleware"
)

// FeedRequest is the body of feed create and update requests. Omitted
// fields keep their current value on update.
type FeedRequest struct {
	Name            *string `json:"name"`
	URL             *string `json:"url"`
	CategoryID      *string `json:"category_id"`
	Enabled         *bool   `json:"enabled"`
	RefreshInterval *int    `json:"refresh_interval"`
}

func (h *handlers) listFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.opts.Feeds.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if feeds == nil {
		feeds = []models.Feed{}
	}
	gridmiddleware.WriteJSON(w, http.StatusOK, feeds)
}

func (h *handlers) createFeed(w http.ResponseWriter, r *http.Request) {
	var req FeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.Name == nil || req.URL == nil {
		h.writeServiceError(w, r, validationError("name and url are required"))
		return
	}

	feed := &models.Feed{Enabled: true}
	if err := h.applyFeedRequest(r.Context(), feed, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.opts.Feeds.Create(r.Context(), feed); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logFeedChange(r, "feed created", feed)
	gridmiddleware.WriteJSON(w, http.StatusCreated, feed)
}

func (h *handlers) updateFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.opts.Feeds.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req FeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.applyFeedRequest(r.Context(), feed, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	feed.Category = nil
	if err := h.opts.Feeds.Update(r.Context(), feed); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logFeedChange(r, "feed updated", feed)
	gridmiddleware.WriteJSON(w, http.StatusOK, feed)
}

func (h *handlers) toggleFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.opts.Feeds.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.opts.Feeds.SetEnabled(r.Context(), feed.ID, !feed.Enabled); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	feed.Enabled = !feed.Enabled

	h.logFeedChange(r, "feed toggled", feed)
	gridmiddleware.WriteJSON(w, http.StatusOK, map[string]any{"id": feed.ID, "enabled": feed.Enabled})
}

func (h *handlers) deleteFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.opts.Feeds.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "feed deleted", slog.String("feed_id", id), slog.String("by", actor(r)))
	gridmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// applyFeedRequest validates req and copies the supplied fields onto feed.
func (h *handlers) applyFeedRequest(ctx context.Context, feed *models.Feed, req *FeedRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return validationError("name must not be empty")
		}
		feed.Name = name
	}
	if req.URL != nil {
		raw := strings.TrimSpace(*req.URL)
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return validationError("url must be an absolute http or https URL")
		}
		feed.URL = raw
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			feed.CategoryID = nil
		} else {
			if _, err := h.opts.Categories.GetByID(ctx, *req.CategoryID); err != nil {
				return validationError("unknown category %q", *req.CategoryID)
			}
			id := *req.CategoryID
			feed.CategoryID = &id
		}
	}
	if req.Enabled != nil {
		feed.Enabled = *req.Enabled
	}
	if req.RefreshInterval != nil {
		if *req.RefreshInterval <= 0 {
			return validationError("refresh_interval must be positive")
		}
		feed.RefreshInterval = *req.RefreshInterval
	}
	return nil
}

func (h *handlers) logFeedChange(r *http.Request, msg string, feed *models.Feed) {
	h.logger.InfoContext(r.Context(), msg,
		slog.String("feed_id", feed.ID),
		slog.String("url", feed.URL),
		slog.Bool("enabled", feed.Enabled),
		slog.String("by", actor(r)),
	)
}

// actor names the caller for audit logs.
func actor(r *http.Request) string {
	if p, ok := auth.GetUserFromContext(r.Context()); ok {
		return p.Email
	}
	return ""
}
