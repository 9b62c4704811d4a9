package models

import (
	"encoding/json"
	"math"
)

// GeoPoint represents a GeoJSON Point.
type GeoPoint struct {
	Type        string    `json:"type"`        // Always "Point"
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
}

// Coordinates is a latitude/longitude pair as collected by the location picker.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a usable position. The zero value counts as
// unresolved, matching what an untouched picker produces.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return false
	}
	return c.Lat != 0 || c.Lng != 0
}

// Point converts c to a GeoJSON point.
func (c Coordinates) Point() GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{c.Lng, c.Lat}}
}

// Position extracts coordinates from a GeoJSON point.
func (g GeoPoint) Position() (Coordinates, bool) {
	if len(g.Coordinates) < 2 {
		return Coordinates{}, false
	}
	c := Coordinates{Lng: g.Coordinates[0], Lat: g.Coordinates[1]}
	return c, c.Valid()
}

// ProviderCandidate is a provider as returned by the nearby search.
type ProviderCandidate struct {
	ID                string   `json:"id"`
	Name              string   `json:"name,omitempty"`
	Category          string   `json:"category"`
	Rating            float64  `json:"rating"`
	TrustScore        float64  `json:"trustScore"`
	CompletedBookings int      `json:"completedBookings"`
	CancelledBookings int      `json:"cancelledBookings"`
	Location          GeoPoint `json:"location"`
	Verified          bool     `json:"verified"`
	Languages         []string `json:"languages,omitempty"`
	Description       string   `json:"description,omitempty"`

	// VerificationStatus is pending, verified or rejected.
	VerificationStatus string `json:"verificationStatus,omitempty"`
	RejectionReason    string `json:"rejectionReason,omitempty"`
}

// Provider verification states as moderated by admins.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// UnmarshalJSON accepts both "id" and Mongo style "_id".
func (p *ProviderCandidate) UnmarshalJSON(b []byte) error {
	type alias ProviderCandidate
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = ProviderCandidate(raw.alias)
	if p.ID == "" {
		p.ID = raw.MongoID
	}
	return nil
}

// RankedProvider is a candidate with its computed match score.
type RankedProvider struct {
	Provider   ProviderCandidate `json:"provider"`
	MatchScore float64           `json:"matchScore"`
	DistanceKm float64           `json:"distanceKm"`
}
