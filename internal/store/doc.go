// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the account lifecycle, keeping it independent of specific database
// technologies or persistence details.
package store
