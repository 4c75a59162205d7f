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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDatum indicates a Datum failed validation.
	ErrInvalidDatum = errors.New("invalid datum")

	// ErrEmptySource indicates an Item has no source reference.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrDataSizeMismatch indicates Data does not match Channels*Height*Width.
	ErrDataSizeMismatch = errors.New("data size does not match dimensions")

	// ErrInvalidKey indicates a key that is not a decimal record position.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrTruncatedPayload indicates an encoded Datum shorter than its declared lengths.
	ErrTruncatedPayload = errors.New("truncated datum payload")
)
