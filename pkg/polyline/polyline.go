// Package polyline implements the encoded polyline format used by OSRM and
// Google Maps: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
	"strings"
)

// ErrMalformed reports a string that stops mid-value or leaves the alphabet.
var ErrMalformed = errors.New("malformed polyline")

// Precision5 is OSRM's default "polyline" factor; Precision6 is "polyline6".
const (
	Precision5 = 1e5
	Precision6 = 1e6
)

const (
	offset   = 63
	chunk    = 0x1f
	moreBits = 0x20
)

type Coordinate struct {
	Lat float64
	Lng float64
}

// Decode decodes a precision-5 polyline. An empty string decodes to nil.
func Decode(encoded string) ([]Coordinate, error) {
	return DecodePrecision(encoded, Precision5)
}

// DecodePrecision decodes a polyline written with the given factor.
func DecodePrecision(encoded string, factor float64) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	s := scanner{src: encoded}
	var out []Coordinate
	var lat, lng int64
	for !s.done() {
		dLat, err := s.next()
		if err != nil {
			return nil, err
		}
		dLng, err := s.next()
		if err != nil {
			return nil, err
		}
		lat, lng = lat+dLat, lng+dLng
		out = append(out, Coordinate{Lat: float64(lat) / factor, Lng: float64(lng) / factor})
	}
	return out, nil
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

// next reads one zigzag-encoded varint.
func (s *scanner) next() (int64, error) {
	var v uint64
	for shift := uint(0); ; shift += 5 {
		if s.done() || shift > 60 {
			return 0, ErrMalformed
		}
		c := int(s.src[s.pos]) - offset
		s.pos++
		if c < 0 || c > 0x3f {
			return 0, ErrMalformed
		}
		v |= uint64(c&chunk) << shift
		if c&moreBits == 0 {
			break
		}
	}
	if v&1 == 1 {
		return ^int64(v >> 1), nil
	}
	return int64(v >> 1), nil
}

// Encode encodes coordinates at precision 5.
func Encode(coords []Coordinate) string {
	return EncodePrecision(coords, Precision5)
}

// EncodePrecision encodes coordinates with the given factor.
func EncodePrecision(coords []Coordinate, factor float64) string {
	var b strings.Builder
	b.Grow(len(coords) * 8)

	var prevLat, prevLng int64
	for _, c := range coords {
		lat := int64(math.Round(c.Lat * factor))
		lng := int64(math.Round(c.Lng * factor))
		put(&b, lat-prevLat)
		put(&b, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return b.String()
}

func put(b *strings.Builder, delta int64) {
	v := uint64(delta) << 1
	if delta < 0 {
		v = ^v
	}
	for v >= moreBits {
		b.WriteByte(byte(v&chunk|moreBits) + offset)
		v >>= 5
	}
	b.WriteByte(byte(v) + offset)
}
