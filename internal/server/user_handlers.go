package server

import (
	"net/http"
	"time"

	gridmiddleware "github.com/TBMCG/RSS-feed/internal/middleware"
)

// UserSummary describes a persisted user in the user listing.
type UserSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.opts.Users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		u := &users[i]
		out = append(out, UserSummary{
			ID:          u.ID,
			Email:       u.Email,
			Name:        u.Name,
			Roles:       u.RoleNames(),
			LastLoginAt: u.LastLoginAt,
		})
	}
	gridmiddleware.WriteJSON(w, http.StatusOK, out)
}
