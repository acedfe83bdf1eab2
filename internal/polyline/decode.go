package polyline

import "errors"

// ErrTruncated is returned when an encoded path ends in the middle of a
// continuation sequence.
var ErrTruncated = errors.New("polyline: truncated continuation sequence")

// ErrInvalidChar is returned when the encoded path contains a byte below the
// base offset.
var ErrInvalidChar = errors.New("polyline: invalid character")

// Point is a decoded coordinate pair.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

const (
	base         = 63
	continuation = 0x20
	scale        = 1e5
)

// Decode converts an encoded polyline (5-bit chunked, zig-zag delta encoded,
// 1e5 fixed point) into an ordered sequence of points. Each decoded value is
// a delta against the previous point, so coordinates are accumulated as a
// running sum. A malformed input returns an error and no points.
func Decode(encoded string) ([]Point, error) {
	var points []Point
	var lat, lng int64
	for i := 0; i < len(encoded); {
		dLat, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		dLng, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		lat += dLat
		lng += dLng
		points = append(points, Point{
			Lng: float64(lng) / scale,
			Lat: float64(lat) / scale,
		})
	}
	return points, nil
}

// decodeValue reads one zig-zag encoded signed integer and reports how many
// bytes were consumed.
func decodeValue(s string) (int64, int, error) {
	if len(s) == 0 {
		return 0, 0, ErrTruncated
	}
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - base
		if b < 0 {
			return 0, 0, ErrInvalidChar
		}
		result |= (b &^ continuation) << shift
		shift += 5
		if b < continuation {
			if result&1 != 0 {
				return ^(result >> 1), i + 1, nil
			}
			return result >> 1, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}
