package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flexify/services/api"

	"go.uber.org/zap"
)

// AuthorizedClient sends authenticated API calls. A 401 triggers at most one
// token refresh and one retry of the original call; if the call still fails
// with 401, or the refresh fails, the session is torn down and
// ErrSessionExpired returned.
type AuthorizedClient struct {
	store *Store
}

// Client returns the authorized API client bound to this store.
func (s *Store) Client() *AuthorizedClient {
	return &AuthorizedClient{store: s}
}

func isAuthPath(path string) bool {
	p := "/" + strings.TrimLeft(path, "/")
	return p == "/auth/login" || p == "/auth/refresh"
}

// Send implements api.Doer. A 401 is only recovered for the account that
// issued the request; if the session ended or changed hands meanwhile, the
// original error is returned untouched.
func (c *AuthorizedClient) Send(ctx context.Context, req api.Request, out any) error {
	s := c.store
	if req.Anonymous || isAuthPath(req.Path) {
		return s.api.Send(ctx, req, out)
	}

	owner := s.Current()
	if owner == nil {
		return s.api.Send(ctx, req, out)
	}
	issued := owner.Token
	req.Token = issued
	err := s.api.Send(ctx, req, out)
	if !api.IsUnauthorized(err) {
		return err
	}

	cur := s.Current()
	if !sameAccount(cur, owner) {
		s.logger.Info("Session changed while request was in flight", zap.String("path", req.Path))
		return err
	}

	// Another caller may have refreshed while this request was in flight.
	current := cur.Token
	if current == issued {
		token, rerr := s.refreshShared(ctx, owner, issued)
		if errors.Is(rerr, errSessionChanged) {
			return err
		}
		if rerr != nil {
			s.expire(ctx, owner)
			return fmt.Errorf("%w: %w", ErrSessionExpired, rerr)
		}
		current = token
	}

	req.Token = current
	err = s.api.Send(ctx, req, out)
	if api.IsUnauthorized(err) {
		s.logger.Warn("Request still unauthorized after refresh", zap.String("path", req.Path))
		s.expire(ctx, owner)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}
