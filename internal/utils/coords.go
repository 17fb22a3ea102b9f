package utils

// PlausibleCoordinates reports whether a lat/lon pair is inside valid bounds
// and not the (0,0) null island reading browsers send before a fix.
func PlausibleCoordinates(lat, lon float64) bool {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return true
}
