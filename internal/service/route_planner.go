package service

import (
	"math"

	"github.com/google/uuid"

	"defect-service/internal/model"
)

type RoutePoint struct {
	EventID    uuid.UUID         `json:"event_id"`
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	Class      model.DefectClass `json:"class"`
	Severity   model.Severity    `json:"severity"`
	Confidence float64           `json:"confidence"`
}

type RoutePlan struct {
	Points          []RoutePoint `json:"points"`
	TotalDistanceKm float64      `json:"total_distance_km"`
	// EstimatedMinutes assumes 30 km/h average travel between sites.
	EstimatedMinutes int `json:"estimated_minutes"`
}

// PlanRoute orders the given locations into an open visiting path by greedy
// nearest-neighbor construction: from the origin, repeatedly take the
// unvisited point with the smallest great-circle distance. This is a
// deliberate approximation; optimal TSP ordering is out of scope for the
// tens of open defects a crew visits in a day. Ties break toward insertion
// order. When origin is nil the first location is the origin, so its leading
// leg costs nothing.
func PlanRoute(origin *Location, points []RoutePoint) RoutePlan {
	if len(points) == 0 {
		return RoutePlan{Points: []RoutePoint{}}
	}

	curLat, curLon := points[0].Latitude, points[0].Longitude
	if origin != nil {
		curLat, curLon = origin.Latitude, origin.Longitude
	}

	visited := make([]bool, len(points))
	ordered := make([]RoutePoint, 0, len(points))
	total := 0.0

	for range points {
		nearest := -1
		minDist := math.Inf(1)
		for j, p := range points {
			if visited[j] {
				continue
			}
			d := Haversine(curLat, curLon, p.Latitude, p.Longitude)
			if d < minDist {
				minDist = d
				nearest = j
			}
		}
		visited[nearest] = true
		ordered = append(ordered, points[nearest])
		total += minDist
		curLat, curLon = points[nearest].Latitude, points[nearest].Longitude
	}

	return RoutePlan{
		Points:           ordered,
		TotalDistanceKm:  total,
		EstimatedMinutes: int(total / 30.0 * 60.0),
	}
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
