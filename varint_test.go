package ddsketch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecodeUnsignedVarlong(t *testing.T) {
	cases := []struct {
		value int64
		bytes []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{127, []byte{127}},
		{128, []byte{128, 1}},
		{129, []byte{129, 1}},
		{255, []byte{255, 1}},
		{256, []byte{128, 2}},
		{16383, []byte{255, 127}},
		{16384, []byte{128, 128, 1}},
		{16385, []byte{129, 128, 1}},
		{-2, []byte{254, 255, 255, 255, 255, 255, 255, 255, 255}},
		{-1, []byte{255, 255, 255, 255, 255, 255, 255, 255, 255}},
	}
	for _, c := range cases {
		got, err := DecodeUnsignedVarlong(newBytesReader(c.bytes))
		assert.NoError(t, err)
		assert.Equal(t, c.value, got)
	}
}

func TestDecodeSignedVarlong(t *testing.T) {
	cases := []struct {
		value int64
		bytes []byte
	}{
		{0, []byte{0}},
		{1, []byte{2}},
		{63, []byte{126}},
		{64, []byte{128, 1}},
		{127, []byte{254, 1}},
		{128, []byte{128, 2}},
		{8191, []byte{254, 127}},
		{8192, []byte{128, 128, 1}},
		{-1, []byte{1}},
		{-63, []byte{125}},
		{-64, []byte{127}},
		{-65, []byte{129, 1}},
		{-8192, []byte{255, 127}},
		{-8193, []byte{129, 128, 1}},
		{9223372036854775807, []byte{254, 255, 255, 255, 255, 255, 255, 255, 255}},
		{-9223372036854775808, []byte{255, 255, 255, 255, 255, 255, 255, 255, 255}},
	}
	for _, c := range cases {
		got, err := DecodeSignedVarlong(newBytesReader(c.bytes))
		assert.NoError(t, err)
		assert.Equal(t, c.value, got)
	}
}

func TestDecodeVarbitDouble(t *testing.T) {
	cases := []struct {
		value float64
		bytes []byte
	}{
		{0.0, []byte{0}},
		{1.0, []byte{2}},
		{2.0, []byte{3}},
		{3.0, []byte{4}},
		{4.0, []byte{132, 64}},
		{5.0, []byte{5}},
		{6.0, []byte{133, 64}},
		{7.0, []byte{6}},
		{8.0, []byte{134, 32}},
		{9.0, []byte{134, 64}},
		{4.503599627370494e15, []byte{231, 255, 255, 255, 255, 255, 255, 255, 128}},
		{4.503599627370495e15, []byte{104}},
		{4.503599627370496e15, []byte{232, 128, 128, 128, 128, 128, 128, 128, 64}},
		{9.00719925474099e15, []byte{233, 255, 255, 255, 255, 255, 255, 255, 192}},
		{-1.0, []byte{130, 128, 128, 128, 128, 128, 128, 128, 48}},
		{-0.5, []byte{254, 128, 128, 128, 128, 128, 128, 128, 63}},
	}
	for _, c := range cases {
		got, err := DecodeVarbitDouble(newBytesReader(c.bytes))
		assert.NoError(t, err)
		assert.Equal(t, c.value, got)
	}
}

func TestEncodeDecodeVarbitDoubleRoundTrip(t *testing.T) {
	cases := []float64{0.0, 1.0, 2.0, 3.0, 4.0, 5.0, -1.0, -0.5, 4.503599627370494e15}
	for _, v := range cases {
		w := newBytesWriter(16)
		assert.NoError(t, EncodeVarbitDouble(w, v))
		got, err := DecodeVarbitDouble(newBytesReader(w.Bytes()))
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestUnsignedVarlongRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint64().Draw(t, "v")
		w := newBytesWriter(9)
		assert.NoError(t, EncodeUnsignedVarlong(w, v))
		assert.Equal(t, unsignedVarlongLen(v), len(w.Bytes()))
		got, err := DecodeUnsignedVarlong(newBytesReader(w.Bytes()))
		assert.NoError(t, err)
		assert.Equal(t, int64(v), got)
	})
}

func TestSignedVarlongRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int64().Draw(t, "v")
		w := newBytesWriter(9)
		assert.NoError(t, EncodeSignedVarlong(w, v))
		got, err := DecodeSignedVarlong(newBytesReader(w.Bytes()))
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	})
}

func TestVarbitDoubleRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.Uint64().Draw(t, "bits")
		v := varbitInverseTransform(bits)
		w := newBytesWriter(9)
		assert.NoError(t, EncodeVarbitDouble(w, v))
		assert.Equal(t, varbitDoubleLen(v), len(w.Bytes()))
		got, err := DecodeVarbitDouble(newBytesReader(w.Bytes()))
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	})
}

func TestZigZag(t *testing.T) {
	assert.Equal(t, uint64(0), zigZagEncode(0))
	assert.Equal(t, uint64(1), zigZagEncode(-1))
	assert.Equal(t, uint64(2), zigZagEncode(1))
	assert.Equal(t, uint64(3), zigZagEncode(-2))

	for _, v := range []int64{0, -1, 1, -2, 2, 1 << 40, -(1 << 40)} {
		assert.Equal(t, v, zigZagDecode(int64(zigZagEncode(v))))
	}
}

func TestBytesReaderExhaustion(t *testing.T) {
	r := newBytesReader([]byte{1})
	_, err := r.ReadByte()
	assert.NoError(t, err)
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, ErrIoError)
}

func TestBytesWriterBytes(t *testing.T) {
	var buf bytes.Buffer
	w := newBytesWriter(0)
	assert.NoError(t, w.WriteUint64LE(1))
	buf.Write(w.Bytes())
	assert.Equal(t, 8, buf.Len())
}
