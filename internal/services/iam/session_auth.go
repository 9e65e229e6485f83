package iam

import (
	"context"
	"fmt"
	"time"
)

// SessionAuthenticator reads the Snapshot stored in the session. The
// session store is trusted, so no signature is checked.
type SessionAuthenticator struct {
	now func() time.Time
}

// NewSessionAuthenticator creates a new session authenticator.
func NewSessionAuthenticator() *SessionAuthenticator {
	return &SessionAuthenticator{now: time.Now}
}

func (a *SessionAuthenticator) Authenticate(_ context.Context, req AuthRequest) (*Snapshot, error) {
	if req.Session == nil {
		return nil, nil
	}
	var snap Snapshot
	ok, err := req.Session.Get(PrincipalKey, &snap)
	if err != nil {
		return nil, fmt.Errorf("read session principal: %w", err)
	}
	if !ok || snap.Subject == "" || snap.expired(a.now()) {
		return nil, nil
	}
	return &snap, nil
}
