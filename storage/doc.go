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
// Package storage provides the storage abstraction layer for datumload.
//
// This package defines the contract between the ingestion pipeline and the
// embedded key-value engine, plus the payload encodings written into it.
//
// # Architecture
//
//   - Environment: an opened store; begins transactions, grows its capacity
//     reservation and reports entry counts
//   - Transaction: an exclusively-owned batch of staged writes with a
//     one-way lifecycle (open, then committed or failed)
//   - PutResult: tagged outcome of a staged write, distinguishing capacity
//     exhaustion from ordinary failures
//
// The badger subpackage provides the implementation:
//
//	env, err := badger.Open("/path/to/db", storage.ModeNew)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
// # Payload Formats
//
// Records are Caffe Datum messages. FormatProto writes the protobuf wire
// format Caffe reads; FormatMUS writes a smaller mus encoding.
//
// # Thread Safety
//
// An Environment and its transactions belong to one goroutine, the persister.
// Nothing in this package is safe for concurrent writers.
package storage
