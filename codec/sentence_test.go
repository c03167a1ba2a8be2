package codec

import (
	"testing"

	"github.com/arloliu/go-instrument/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ggaSample = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"

func TestParseSentenceGGA(t *testing.T) {
	s, err := ParseSentence([]byte(ggaSample), ChecksumXOR)
	require.NoError(t, err)
	assert.Equal(t, byte('$'), s.Leader)
	assert.Equal(t, "GPGGA", s.Name)
	assert.Equal(t, "GGA", s.Type())

	values, err := SentenceValues(s)
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, values["latitude"].(float64), 1e-6)
	assert.InDelta(t, 11.516667, values["longitude"].(float64), 1e-6)
	assert.Equal(t, 1, values["quality"])
	assert.Equal(t, 8, values["satellites"])
	assert.InDelta(t, 545.4, values["altitude"].(float64), 1e-9)
	assert.Equal(t, "123519", values["time"])
}

func TestParseSentenceErrors(t *testing.T) {
	_, err := ParseSentence([]byte("$GPGGA,123519*48"), ChecksumXOR)
	require.ErrorIs(t, err, ErrChecksum)

	for _, raw := range []string{"GPGGA,1*00", "$GPGGA,1", "$GPGGA,1*4", "$GPGGA,1*ZZ", ""} {
		_, err := ParseSentence([]byte(raw), ChecksumXOR)
		require.ErrorIs(t, err, ErrSentence, raw)
	}
}

func TestSentenceAdditiveChecksum(t *testing.T) {
	raw := EncodeSentence('#', "INSATT,120000,271.5,1.2,-0.4", ChecksumAdditive)

	_, err := ParseSentence(raw, ChecksumXOR)
	require.ErrorIs(t, err, ErrChecksum)

	c := &Sentence{Leader: '#', Mode: ChecksumAdditive}
	res, err := c.Decode(Request{Class: "NOV"}, raw)
	require.NoError(t, err)
	assert.Equal(t, "ATT", res.Values["type"])
	assert.InDelta(t, 271.5, res.Values["heading"].(float64), 1e-9)
	assert.InDelta(t, -0.4, res.Values["roll"].(float64), 1e-9)
	assert.True(t, res.HasValue)
}

func TestSentenceCodecHeading(t *testing.T) {
	c := NewSentence("HDT")

	res, err := c.Decode(Request{Class: "GPS"}, EncodeSentence('$', "GPHDT,123.456,T", ChecksumXOR))
	require.NoError(t, err)
	assert.InDelta(t, 123.456, res.Value, 1e-9)

	_, err = c.Decode(Request{Class: "GPS"}, []byte(ggaSample))
	require.ErrorIs(t, err, fault.ErrParse)
	require.ErrorIs(t, err, ErrSentence)
}

func TestSentenceCodecBadLatitude(t *testing.T) {
	c := NewSentence()

	_, err := c.Decode(Request{}, EncodeSentence('$', "GPGGA,1,4875.0,N,01131.000,E,1,08,0.9,545.4,M", ChecksumXOR))
	require.ErrorIs(t, err, fault.ErrParse)
}

func TestSentenceEncode(t *testing.T) {
	c := NewSentence()

	wire, err := c.Encode(Request{Command: "PSRF103,{0},00,00,01", Params: []any{"00"}})
	require.NoError(t, err)

	s, err := ParseSentence(wire, ChecksumXOR)
	require.NoError(t, err)
	assert.Equal(t, "PSRF103", s.Name)
	assert.Equal(t, []string{"00", "00", "00", "01"}, s.Fields)

	_, err = c.Encode(Request{})
	require.ErrorIs(t, err, ErrUnsupported)
}
