// Package store is a SQLite-backed stand-in for the student records
// keyspace. It is used for local development and tests.
//
// The store enforces the same query model as the production wide-column
// store:
//   - tables and indexes come from the schema catalog
//   - a filter on a column that is neither the key nor indexed is rejected
//     unless the statement carries ALLOW FILTERING
//   - statements use ? parameters only
//
// Rejections match ErrFilteringRequired so the executor's full-scan retry
// behaves exactly as it does against the real store.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
