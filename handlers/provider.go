package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"flexify/models"
	"flexify/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// defaultSearchRadiusKm applies when the query carries no maxDistance.
const defaultSearchRadiusKm = 10

// GetProvider handles GET /providers/:id.
func (hb *HandlerBundle) GetProvider(c *gin.Context) {
	p, err := hb.Repo.GetProvider(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// SearchNearby handles GET /providers/search/nearby. Results are ordered by
// distance from the query point.
func (hb *HandlerBundle) SearchNearby(c *gin.Context) {
	logger := hb.getLogger(c)

	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
	origin := models.Coordinates{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !origin.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid latitude and longitude are required"})
		return
	}
	radius := float64(defaultSearchRadiusKm)
	if raw := c.Query("maxDistance"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			radius = v
		}
	}
	verifiedOnly := c.Query("verified") == "true"

	type hit struct {
		p models.ProviderCandidate
		d float64
	}
	var hits []hit
	for _, p := range hb.Repo.ListProviders(c.Query("category"), verifiedOnly) {
		pos, ok := p.Location.Position()
		if !ok {
			continue
		}
		if d := booking.DistanceKm(origin, pos); d <= radius {
			hits = append(hits, hit{p, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	providers := make([]models.ProviderCandidate, len(hits))
	for i, h := range hits {
		providers[i] = h.p
	}
	logger.Debug("Nearby search",
		zap.String("category", c.Query("category")), zap.Float64("radiusKm", radius), zap.Int("results", len(providers)))
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}
