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


package core

import (
	"fmt"
	"strconv"
)

// KeyWidth is the number of decimal digits in a record key.
const KeyWidth = 8

// FormatKey returns the zero-padded decimal key for the record at position n.
// Positions wider than KeyWidth digits are rendered in full, never truncated.
func FormatKey(n int) string {
	return fmt.Sprintf("%0*d", KeyWidth, n)
}

// ParseKey returns the position encoded in a key produced by FormatKey.
func ParseKey(key string) (int, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidKey, key, err)
	}
	return n, nil
}

// Item is one entry of an input list: a source reference and its label.
type Item struct {
	Source string
	Label  int
}

// Record is a single key/value pair in flight between producer and persister.
// Value is an opaque serialized payload.
type Record struct {
	Key   string
	Value []byte
}

// Datum is a labelled sample laid out the way Caffe expects it.
// Data holds channel-planar pixels unless Encoded is set, in which case it
// holds the original compressed file bytes.
type Datum struct {
	Channels  int32
	Height    int32
	Width     int32
	Data      []byte
	Label     int32
	FloatData []float32 // Optional float samples; unused for image input
	Encoded   bool
}
