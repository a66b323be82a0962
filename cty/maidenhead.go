package cty

import "math"

// Grid4FromLatLon returns the 4-character Maidenhead grid for a lat/lon pair.
// It returns false when coordinates are out of range or non-finite.
func Grid4FromLatLon(lat, lon float64) (string, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", false
	}
	if lat == 90 {
		lat = 89.999999
	}
	if lon == 180 {
		lon = 179.999999
	}
	adjLon := lon + 180
	adjLat := lat + 90
	fieldLon := int(adjLon / 20)
	fieldLat := int(adjLat / 10)
	if fieldLon < 0 || fieldLon >= 18 || fieldLat < 0 || fieldLat >= 18 {
		return "", false
	}
	squareLon := int((adjLon - float64(fieldLon)*20) / 2)
	squareLat := int((adjLat - float64(fieldLat)*10) / 1)
	if squareLon < 0 || squareLon >= 10 || squareLat < 0 || squareLat >= 10 {
		return "", false
	}
	return string([]byte{
		byte('A' + fieldLon),
		byte('A' + fieldLat),
		byte('0' + squareLon),
		byte('0' + squareLat),
	}), true
}

// LatLonFromGrid4 returns the center coordinates of a Maidenhead square.
// Longer locators decode to the center of their enclosing 4-character
// square. It returns false for malformed input; receiver locators are free
// text on the wire, so callers treat failures as display-only.
func LatLonFromGrid4(grid string) (lat, lon float64, ok bool) {
	if len(grid) < 4 {
		return 0, 0, false
	}
	fLon := upperByte(grid[0])
	fLat := upperByte(grid[1])
	sLon := grid[2]
	sLat := grid[3]
	if fLon < 'A' || fLon > 'R' || fLat < 'A' || fLat > 'R' {
		return 0, 0, false
	}
	if sLon < '0' || sLon > '9' || sLat < '0' || sLat > '9' {
		return 0, 0, false
	}
	lon = float64(fLon-'A')*20 + float64(sLon-'0')*2 + 1 - 180
	lat = float64(fLat-'A')*10 + float64(sLat-'0') + 0.5 - 90
	return lat, lon, true
}

func upperByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
