package polyline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The worked example from the format documentation.
const googleExample = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var googlePoints = []Coordinate{
	{Lat: 38.5, Lng: -120.2},
	{Lat: 40.7, Lng: -120.95},
	{Lat: 43.252, Lng: -126.453},
}

func assertCoords(t *testing.T, want, got []Coordinate, tolerance float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Lat, got[i].Lat, tolerance, "lat %d", i)
		assert.InDelta(t, want[i].Lng, got[i].Lng, tolerance, "lng %d", i)
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode(googleExample)
	require.NoError(t, err)
	assertCoords(t, googlePoints, got, 1e-6)

	got, err = Decode("_p~iF~ps|U")
	require.NoError(t, err)
	assertCoords(t, googlePoints[:1], got, 1e-6)
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecode_Malformed(t *testing.T) {
	for name, in := range map[string]string{
		"missing longitude": "_p~iF",
		"dangling continue": "_p~iF~ps|",
		"below alphabet":    "_p~iF ",
		"above alphabet":    "_p~iF\x7f",
		"overlong varint":   "~~~~~~~~~~~~~~~~?",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, googleExample, Encode(googlePoints))
	assert.Empty(t, Encode(nil))
}

func TestRoundTrip(t *testing.T) {
	// Đồng Khởi, Quận 1, down to the river.
	street := []Coordinate{
		{Lat: 10.77689, Lng: 106.70081},
		{Lat: 10.77512, Lng: 106.70234},
		{Lat: 10.77301, Lng: 106.70399},
	}

	got, err := Decode(Encode(street))
	require.NoError(t, err)
	assertCoords(t, street, got, 5e-6)

	precise := []Coordinate{{Lat: 21.028511, Lng: 105.854164}, {Lat: 21.027763, Lng: 105.852119}}
	got, err = DecodePrecision(EncodePrecision(precise, Precision6), Precision6)
	require.NoError(t, err)
	assertCoords(t, precise, got, 5e-7)
}

func BenchmarkDecode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Decode(googleExample)
	}
}
