package codec

import (
	"testing"

	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHexSumTemperature(t *testing.T) {
	frame, err := EncodeHexSum("*", "", 25.0, 10, 16)
	require.NoError(t, err)
	assert.Equal(t, "*00FAE7", frame)

	frame, err = EncodeHexSum("*", "001c", 25.0, 10, 16)
	require.NoError(t, err)
	assert.Equal(t, "*001c00FA"+units.Checksum("001c00FA"), frame)
}

func TestDecodeHexSumTemperature(t *testing.T) {
	hex, v, err := DecodeHexSum("*", "*00FAE7", 10, 16)
	require.NoError(t, err)
	assert.Equal(t, "00FA", hex)
	assert.InDelta(t, 25.0, v, 1e-12)

	_, v, err = DecodeHexSum("*", "*FF06F2", 10, 16)
	require.NoError(t, err)
	assert.InDelta(t, -25.0, v, 1e-12)
}

func TestDecodeHexSumErrors(t *testing.T) {
	_, _, err := DecodeHexSum("*", "*00FAE8", 10, 16)
	require.ErrorIs(t, err, ErrChecksum)

	_, _, err = DecodeHexSum("*", "00FAE7", 10, 16)
	require.Error(t, err)

	_, _, err = DecodeHexSum("*", "*00FA", 10, 16)
	require.Error(t, err)
}

func TestHexSumCodec(t *testing.T) {
	c := NewHexSum(16, 10)

	wire, err := c.Encode(Request{Class: "TC", Action: "set_temperature", Params: []any{25.0}})
	require.NoError(t, err)
	assert.Equal(t, "*00FAE7\r", string(wire))

	res, err := c.Decode(Request{Class: "TC"}, []byte("*00FAE7^"))
	require.NoError(t, err)
	assert.True(t, res.HasValue)
	assert.InDelta(t, 25.0, res.Value, 1e-12)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, int64(250), res.Fields[0].Int)

	_, err = c.Decode(Request{Class: "TC"}, []byte("*00FAE8^"))
	require.ErrorIs(t, err, fault.ErrParse)
	require.ErrorIs(t, err, ErrChecksum)

	_, err = c.Encode(Request{Params: []any{"hot"}})
	require.ErrorIs(t, err, ErrTemplate)
}

func TestHexSumFactorOverride(t *testing.T) {
	c := NewHexSum(16, 10)

	res, err := c.Decode(Request{Factor: 100}, []byte("*00FAE7^"))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, res.Value, 1e-12)
}

func TestHexSumRoundTrip(t *testing.T) {
	for _, v := range []float64{-100.5, -0.1, 0, 12.3, 99.9} {
		frame, err := EncodeHexSum("*", "", v, 10, 32)
		require.NoError(t, err)

		_, back, err := DecodeHexSum("*", frame, 10, 32)
		require.NoError(t, err)
		assert.InDelta(t, v, back, 1e-9)
	}
}
