package mysql

import (
	"database/sql"
	"strings"

	"machtms/internal/tms"
)

// Store combines the load and directory repositories into the storage
// interface the domain service consumes.
type Store struct {
	*LoadRepository
	*DirectoryRepository
}

// NewStore builds the combined store on a shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		LoadRepository:      NewLoadRepository(db),
		DirectoryRepository: NewDirectoryRepository(db),
	}
}

// Close is a no-op; the shared database handle is owned by the daemon.
func (s *Store) Close() error {
	return nil
}

// prefixColumns qualifies a comma separated column list with a table
// alias for joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

var _ tms.Store = (*Store)(nil)
