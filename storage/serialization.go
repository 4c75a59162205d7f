// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package storage

import (
	"fmt"
	"math"
	"strings"

	"github.com/poiesic/datumload/core"
	"google.golang.org/protobuf/encoding/protowire"
)

// Caffe Datum field numbers.
const (
	datumChannels  protowire.Number = 1
	datumHeight    protowire.Number = 2
	datumWidth     protowire.Number = 3
	datumData      protowire.Number = 4
	datumLabel     protowire.Number = 5
	datumFloatData protowire.Number = 6
	datumEncoded   protowire.Number = 7
)

// Format names a payload encoding.
type Format string

const (
	// FormatProto is the Caffe Datum protobuf wire format.
	FormatProto Format = "proto"
	// FormatMUS is the compact mus encoding.
	FormatMUS Format = "mus"
)

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatProto, "":
		return FormatProto, nil
	case FormatMUS:
		return FormatMUS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Marshal encodes a Datum in this format.
func (f Format) Marshal(d *core.Datum) ([]byte, error) {
	switch f {
	case FormatProto:
		return MarshalDatum(d), nil
	case FormatMUS:
		return MarshalDatumMUS(d), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// Unmarshal decodes a Datum in this format.
func (f Format) Unmarshal(data []byte) (*core.Datum, error) {
	switch f {
	case FormatProto:
		return UnmarshalDatum(data)
	case FormatMUS:
		return UnmarshalDatumMUS(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// MarshalDatum serializes a Datum to the Caffe protobuf wire format.
// Encoded datums carry only data, label and the encoded flag, as Caffe writes them.
func MarshalDatum(d *core.Datum) []byte {
	var b []byte
	if !d.Encoded {
		b = appendInt32(b, datumChannels, d.Channels)
		b = appendInt32(b, datumHeight, d.Height)
		b = appendInt32(b, datumWidth, d.Width)
	}
	b = protowire.AppendTag(b, datumData, protowire.BytesType)
	b = protowire.AppendBytes(b, d.Data)
	b = appendInt32(b, datumLabel, d.Label)
	for _, f := range d.FloatData {
		b = protowire.AppendTag(b, datumFloatData, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	b = protowire.AppendTag(b, datumEncoded, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(d.Encoded))
	return b
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// UnmarshalDatum deserializes a Datum from the Caffe protobuf wire format.
// Unknown fields are skipped; float_data is accepted packed or unpacked.
func UnmarshalDatum(data []byte) (*core.Datum, error) {
	d := &core.Datum{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && num != datumFloatData:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(m))
			}
			setVarintField(d, num, v)
			n = m
		case typ == protowire.BytesType && num == datumData:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(m))
			}
			d.Data = append([]byte(nil), v...)
			n = m
		case typ == protowire.Fixed32Type && num == datumFloatData:
			v, m := protowire.ConsumeFixed32(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(m))
			}
			d.FloatData = append(d.FloatData, math.Float32frombits(v))
			n = m
		case typ == protowire.BytesType && num == datumFloatData:
			packed, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(m))
			}
			for len(packed) > 0 {
				v, k := protowire.ConsumeFixed32(packed)
				if k < 0 {
					return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(k))
				}
				d.FloatData = append(d.FloatData, math.Float32frombits(v))
				packed = packed[k:]
			}
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, protowire.ParseError(m))
			}
			n = m
		}
		data = data[n:]
	}
	return d, nil
}

func setVarintField(d *core.Datum, num protowire.Number, v uint64) {
	switch num {
	case datumChannels:
		d.Channels = int32(v)
	case datumHeight:
		d.Height = int32(v)
	case datumWidth:
		d.Width = int32(v)
	case datumLabel:
		d.Label = int32(v)
	case datumEncoded:
		d.Encoded = protowire.DecodeBool(v)
	}
}

// MarshalDatumMUS serializes a Datum to the mus format.
func MarshalDatumMUS(d *core.Datum) []byte {
	buf := make([]byte, core.DatumMUS.Size(*d))
	core.DatumMUS.Marshal(*d, buf)
	return buf
}

// UnmarshalDatumMUS deserializes a Datum from the mus format.
func UnmarshalDatumMUS(data []byte) (*core.Datum, error) {
	d, _, err := core.DatumMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &d, nil
}
