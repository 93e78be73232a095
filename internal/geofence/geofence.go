package geofence

import "math"

const earthRadiusKm = 6371.0

// Boundary is a fixed circular campus boundary.
type Boundary struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// Result carries the admission decision plus the computed distance so a
// rejection can tell the user how far away they are.
type Result struct {
	Inside     bool
	DistanceKm float64
}

// Validator decides whether an observed position may submit an event.
type Validator struct {
	boundary Boundary
}

// New constructs a validator for the given boundary.
func New(boundary Boundary) *Validator {
	return &Validator{boundary: boundary}
}

// Check computes the great-circle distance from the boundary center and
// admits positions at or inside the radius. Boundary-inclusive: a point at
// exactly the radius is accepted.
func (v *Validator) Check(lat, lng float64) Result {
	d := Distance(lat, lng, v.boundary.Lat, v.boundary.Lng)
	return Result{Inside: d <= v.boundary.RadiusKm, DistanceKm: d}
}

// Distance returns the haversine distance in kilometers between two points
// given in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*(math.Pi/180.0))*math.Cos(lat2*(math.Pi/180.0))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
