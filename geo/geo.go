package geo

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

var ErrInvalidDMS = errors.New("invalid DMS coordinate")

var dmsPattern = regexp.MustCompile(`(?i)^(\d{1,3})°(\d{1,2})'(\d{1,2}(?:\.\d+)?)"([NSEW])$`)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders the "lat,lng" form the directions API expects.
func (c Coord) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// ParseDMS converts a coordinate such as 33°55'12"S to decimal degrees.
func ParseDMS(s string) (float64, error) {
	dec, _, err := parseDMS(s)
	return dec, err
}

func parseDMS(s string) (float64, byte, error) {
	m := dmsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDMS, s)
	}
	deg, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	sec, _ := strconv.ParseFloat(m[3], 64)

	dec := deg + minutes/60 + sec/3600
	hemi := strings.ToUpper(m[4])[0]
	if hemi == 'S' || hemi == 'W' {
		dec = -dec
	}
	return dec, hemi, nil
}

// ParseDMSPair parses a whitespace separated "lat lng" DMS pair. The latitude
// must carry N or S and the longitude E or W.
func ParseDMSPair(s string) (Coord, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("%w: coordinate pair %q", ErrInvalidDMS, s)
	}
	lat, latHemi, err := parseDMS(parts[0])
	if err != nil {
		return Coord{}, err
	}
	lng, lngHemi, err := parseDMS(parts[1])
	if err != nil {
		return Coord{}, err
	}
	if latHemi != 'N' && latHemi != 'S' {
		return Coord{}, fmt.Errorf("%w: latitude %q must end in N or S", ErrInvalidDMS, parts[0])
	}
	if lngHemi != 'E' && lngHemi != 'W' {
		return Coord{}, fmt.Errorf("%w: longitude %q must end in E or W", ErrInvalidDMS, parts[1])
	}
	c := Coord{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("%w: %q out of range", ErrInvalidDMS, s)
	}
	return c, nil
}

func HaversineKm(a, b Coord) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
