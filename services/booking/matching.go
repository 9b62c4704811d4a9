package booking

import (
	"math"
	"sort"

	"flexify/models"
	"flexify/utils"

	"go.uber.org/zap"
)

// RecommendedCount is how many top candidates are recommended.
const RecommendedCount = 5

// Score weights. They sum to 1.
const (
	RatingWeight     = 0.4
	TrustWeight      = 0.3
	CompletionWeight = 0.2
	ProximityWeight  = 0.1

	MaxRating      = 5.0
	ProximityRange = 10.0 // km
)

// Matcher ranks nearby-search candidates.
type Matcher struct {
	logger *zap.Logger
}

func NewMatcher(logger *zap.Logger) *Matcher {
	return &Matcher{logger: utils.OrNop(logger)}
}

// Score computes the match score of p at distanceKm from the search origin.
func Score(p models.ProviderCandidate, distanceKm float64) float64 {
	computeRatingScore := func(rating float64) float64 {
		if rating < 0 || math.IsNaN(rating) {
			return 0
		}
		if rating > MaxRating {
			rating = MaxRating
		}
		return rating / MaxRating
	}
	// Trust scores above 1 are on a 0-100 scale.
	computeTrustScore := func(trust float64) float64 {
		if trust < 0 || math.IsNaN(trust) {
			return 0
		}
		if trust > 1 {
			trust /= 100
		}
		if trust > 1 {
			trust = 1
		}
		return trust
	}
	computeCompletionRate := func(completed, cancelled int) float64 {
		total := completed + cancelled
		if completed <= 0 || total <= 0 {
			return 0
		}
		return float64(completed) / float64(total)
	}
	computeProximityScore := func(d float64) float64 {
		return math.Max(0, ProximityRange-d) / ProximityRange
	}

	return RatingWeight*computeRatingScore(p.Rating) +
		TrustWeight*computeTrustScore(p.TrustScore) +
		CompletionWeight*computeCompletionRate(p.CompletedBookings, p.CancelledBookings) +
		ProximityWeight*computeProximityScore(distanceKm)
}

// Rank scores candidates against origin and sorts them best first. Equal
// scores keep their input order. Candidates without usable coordinates are
// dropped.
func (m *Matcher) Rank(origin models.Coordinates, candidates []models.ProviderCandidate) ([]models.RankedProvider, error) {
	if !origin.Valid() {
		return nil, NewMatchError("invalid search center coordinates")
	}

	ranked := make([]models.RankedProvider, 0, len(candidates))
	for _, p := range candidates {
		pos, ok := p.Location.Position()
		if !ok {
			m.logger.Warn("Dropping candidate without usable coordinates",
				zap.String("providerID", p.ID), zap.Float64s("coordinates", p.Location.Coordinates))
			continue
		}
		distanceKm := haversine(origin.Lat, origin.Lng, pos.Lat, pos.Lng)
		ranked = append(ranked, models.RankedProvider{
			Provider:   p,
			MatchScore: Score(p, distanceKm),
			DistanceKm: distanceKm,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	return ranked, nil
}

// Recommended returns the top RecommendedCount entries of a ranked list.
func Recommended(ranked []models.RankedProvider) []models.RankedProvider {
	if len(ranked) > RecommendedCount {
		ranked = ranked[:RecommendedCount]
	}
	out := make([]models.RankedProvider, len(ranked))
	copy(out, ranked)
	return out
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b models.Coordinates) float64 {
	return haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// haversine calculates the great-circle distance (in km) between two lat/lon points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)
	lat1Rad := lat1 * (math.Pi / 180)
	lat2Rad := lat2 * (math.Pi / 180)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
