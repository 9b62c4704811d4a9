package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"flexify/models"
	"flexify/services/api"

	"golang.org/x/sync/errgroup"
)

// ErrReasonRequired rejects a provider rejection without a reason.
var ErrReasonRequired = errors.New("a rejection reason is required")

// Client calls the /admin endpoints through an authorized doer.
type Client struct {
	API api.Doer
}

// NewClient returns an AdminService backed by doer.
func NewClient(doer api.Doer) *Client {
	return &Client{API: doer}
}

var _ AdminService = (*Client)(nil)

func (c *Client) list(ctx context.Context, path, key string, out any) error {
	var raw json.RawMessage
	if err := c.API.Send(ctx, api.Request{Method: http.MethodGet, Path: path}, &raw); err != nil {
		return err
	}
	if err := api.DecodeList(raw, key, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.list(ctx, "/admin/users", "users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserBlocked blocks or unblocks an account.
func (c *Client) SetUserBlocked(ctx context.Context, userID string, blocked bool) error {
	return c.API.Send(ctx, api.Request{
		Method: http.MethodPatch,
		Path:   "/admin/users/" + url.PathEscape(userID),
		Body:   map[string]bool{"blocked": blocked},
	}, nil)
}

func (c *Client) Providers(ctx context.Context) ([]models.ProviderCandidate, error) {
	var providers []models.ProviderCandidate
	if err := c.list(ctx, "/admin/providers", "providers", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// PendingProviders lists the providers awaiting verification.
func (c *Client) PendingProviders(ctx context.Context) ([]models.ProviderCandidate, error) {
	var providers []models.ProviderCandidate
	if err := c.list(ctx, "/admin/providers/pending", "providers", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

func (c *Client) VerifyProvider(ctx context.Context, providerID string) error {
	return c.API.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/admin/providers/" + url.PathEscape(providerID) + "/verify",
	}, nil)
}

// RejectProvider rejects a provider's verification. An empty reason is
// refused without a request.
func (c *Client) RejectProvider(ctx context.Context, providerID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	return c.API.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/admin/providers/" + url.PathEscape(providerID) + "/reject",
		Body:   map[string]string{"reason": reason},
	}, nil)
}

func (c *Client) Bookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := c.list(ctx, "/admin/bookings", "bookings", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Overview loads the dashboard lists in parallel. The first failure cancels
// the rest.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var (
		users     []models.User
		providers []models.ProviderCandidate
		bookings  []models.Booking
		pending   []models.ProviderCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { users, err = c.Users(gctx); return })
	g.Go(func() (err error) { providers, err = c.Providers(gctx); return })
	g.Go(func() (err error) { bookings, err = c.Bookings(gctx); return })
	g.Go(func() (err error) { pending, err = c.PendingProviders(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Overview{
		TotalUsers:       len(users),
		TotalProviders:   len(providers),
		TotalBookings:    len(bookings),
		PendingProviders: pending,
	}, nil
}
