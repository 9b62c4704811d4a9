package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flexify/models"
	"flexify/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoResult means the service knows no place for the query.
var ErrNoResult = errors.New("no matching location")

// DefaultURL is the public OpenStreetMap Nominatim instance.
const DefaultURL = "https://nominatim.openstreetmap.org"

// Options configure a Nominatim client.
type Options struct {
	BaseURL   string
	UserAgent string
	// RequestsPerSecond defaults to 1, the public instance's usage limit.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Nominatim resolves addresses against a Nominatim compatible service.
type Nominatim struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewNominatim(opts Options) *Nominatim {
	base := opts.BaseURL
	if base == "" {
		base = DefaultURL
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "flexify-client/1.0"
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(base, "/"),
		userAgent: ua,
		http:      client,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    utils.OrNop(opts.Logger),
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (p place) coordinates() (models.Coordinates, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("bad latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("bad longitude %q: %w", p.Lon, err)
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return models.Coordinates{}, fmt.Errorf("coordinates out of range: %v", c)
	}
	return c, nil
}

// Geocode returns the best match for address and its display name.
func (n *Nominatim) Geocode(ctx context.Context, address string) (models.Coordinates, string, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	var places []place
	if err := n.get(ctx, "/search", q, &places); err != nil {
		return models.Coordinates{}, "", err
	}
	if len(places) == 0 {
		return models.Coordinates{}, "", ErrNoResult
	}
	c, err := places[0].coordinates()
	if err != nil {
		return models.Coordinates{}, "", err
	}
	n.logger.Debug("Address geocoded", zap.String("address", address), zap.Float64("lat", c.Lat), zap.Float64("lng", c.Lng))
	return c, places[0].DisplayName, nil
}

// Reverse returns the display name of the place at c.
func (n *Nominatim) Reverse(ctx context.Context, c models.Coordinates) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("invalid coordinates %v", c)
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lng, 'f', -1, 64))
	q.Set("format", "json")

	var p place
	if err := n.get(ctx, "/reverse", q, &p); err != nil {
		return "", err
	}
	if p.Error != "" || p.DisplayName == "" {
		return "", ErrNoResult
	}
	return p.DisplayName, nil
}

func (n *Nominatim) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.Warn("Geocoding request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response failed: %w", err)
	}
	return nil
}
