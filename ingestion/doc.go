// Package ingestion provides the producer/persister pipeline that bulk-loads
// records into a storage.Environment.
//
// The Pipeline type wires three pieces together:
//   - RecordProducer: serializes list items and assigns sequential keys
//   - Channel: a bounded FIFO hand-off with an explicit finished signal
//   - TransactionManager: batches puts into transactions and grows the store
//     when a transaction runs out of capacity
//
// The producer and persister run as exactly two concurrent tasks. Per-item
// serialization failures are logged and skipped; store failures abort the run.
package ingestion
