// Package postgres provides PostgreSQL implementations of the store
// interfaces, the embedded schema migrations and the goose runner that
// applies them. Connections use the pgx driver through database/sql so that
// stores can be bound to a *sql.Tx for multi-step operations.
package postgres
