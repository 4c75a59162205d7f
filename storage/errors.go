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

import "errors"

var (
	// ErrEnvironment indicates the engine could not create or open its environment.
	ErrEnvironment = errors.New("environment error")

	// ErrTransaction indicates a transaction could not be started.
	ErrTransaction = errors.New("transaction error")

	// ErrCapacityExceeded indicates the store's capacity reservation is full.
	ErrCapacityExceeded = errors.New("storage capacity exceeded")

	// ErrResize indicates the capacity reservation could not be grown.
	ErrResize = errors.New("resize failed")

	// ErrAlreadyExists indicates a new store was requested at an existing path.
	ErrAlreadyExists = errors.New("store already exists")

	// ErrNotExist indicates an existing store was requested at a missing path.
	ErrNotExist = errors.New("store does not exist")

	// ErrTxnDone indicates use of a committed or aborted transaction.
	ErrTxnDone = errors.New("transaction already finished")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrUnknownFormat indicates an unsupported payload format name.
	ErrUnknownFormat = errors.New("unknown payload format")
)
