package core

import (
	"math"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// DatumMUS serializes a Datum in the compact mus format.
// Field order: Channels, Height, Width, Data, Label, FloatData, Encoded.
var DatumMUS = datumMUS{}

type datumMUS struct{}

func (s datumMUS) Marshal(v Datum, bs []byte) (n int) {
	n = varint.Int32.Marshal(v.Channels, bs)
	n += varint.Int32.Marshal(v.Height, bs[n:])
	n += varint.Int32.Marshal(v.Width, bs[n:])
	n += ord.ByteSlice.Marshal(v.Data, bs[n:])
	n += varint.Int32.Marshal(v.Label, bs[n:])
	n += varint.PositiveInt.Marshal(len(v.FloatData), bs[n:])
	for _, f := range v.FloatData {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	n += ord.Bool.Marshal(v.Encoded, bs[n:])
	return
}

func (s datumMUS) Unmarshal(bs []byte) (v Datum, n int, err error) {
	v.Channels, n, err = varint.Int32.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Height, n1, err = varint.Int32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Width, n1, err = varint.Int32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Data, n1, err = ord.ByteSlice.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Label, n1, err = varint.Int32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var count int
	count, n1, err = varint.PositiveInt.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	// Every float takes at least one byte.
	if count > len(bs)-n {
		err = ErrTruncatedPayload
		return
	}
	if count > 0 {
		v.FloatData = make([]float32, count)
		for i := range count {
			var bits uint32
			bits, n1, err = varint.Uint32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			v.FloatData[i] = math.Float32frombits(bits)
		}
	}
	v.Encoded, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return
}

func (s datumMUS) Size(v Datum) (size int) {
	size = varint.Int32.Size(v.Channels)
	size += varint.Int32.Size(v.Height)
	size += varint.Int32.Size(v.Width)
	size += ord.ByteSlice.Size(v.Data)
	size += varint.Int32.Size(v.Label)
	size += varint.PositiveInt.Size(len(v.FloatData))
	for _, f := range v.FloatData {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size + ord.Bool.Size(v.Encoded)
}
