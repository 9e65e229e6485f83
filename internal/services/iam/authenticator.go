package iam

import (
	"context"
	"net/http"

	"github.com/TBMCG/RSS-feed/internal/session"
)

// Authenticator extracts a Snapshot from one credential channel.
//
// Return values:
//   - (snapshot, nil): credentials present and valid
//   - (nil, nil): credentials absent or rejected; try the next authenticator
//   - (nil, error): the credentials could not be checked
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*Snapshot, error)
}

// AuthRequest carries the parts of a request authenticators look at.
type AuthRequest struct {
	// Headers contains HTTP headers (including Authorization)
	Headers http.Header

	// Session is the session loaded for the request, never nil
	Session *session.Session
}
