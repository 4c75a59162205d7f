package ingestion

import "errors"

var (
	// ErrEnvironmentRequired is returned when a storage environment is not provided.
	ErrEnvironmentRequired = errors.New("storage environment required")

	// ErrSerializerRequired is returned when a record serializer is not provided.
	ErrSerializerRequired = errors.New("serializer required")

	// ErrChannelClosed is returned when pushing after the producer finished.
	ErrChannelClosed = errors.New("channel closed")

	// ErrRecordTooLarge is returned when a record still exceeds capacity after growth.
	ErrRecordTooLarge = errors.New("record exceeds capacity after growth")
)
