// Package store implements the State Store (C1): the sole persisted-state
// mutator in the system. Every writer method takes an open *sql.Tx so
// callers can compose several store operations into one scoped
// transaction via database.WithTransaction; readers query the database
// directly and always observe the last committed state.
package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/osf/network-sim/internal/database"
	"github.com/rs/zerolog"
)

// Store wraps the two databases (core, ledger) and exposes the State
// Store operations named in the spec.
type Store struct {
	Core   *database.DB
	Ledger *database.DB
	log    zerolog.Logger
}

// New constructs a Store over already-opened and migrated databases.
func New(core, ledger *database.DB, log zerolog.Logger) *Store {
	return &Store{Core: core, Ledger: ledger, log: log.With().Str("component", "store").Logger()}
}

// NewID generates a new random identifier for store entities that don't
// carry a caller-supplied id.
func NewID() string {
	return uuid.NewString()
}

// WithCoreTx runs fn inside a scoped transaction against the core
// database, committing on success and rolling back on error or panic.
func (s *Store) WithCoreTx(fn func(*sql.Tx) error) error {
	return database.WithTransaction(s.Core.Conn(), fn)
}

// WithLedgerTx runs fn inside a scoped transaction against the ledger
// database.
func (s *Store) WithLedgerTx(fn func(*sql.Tx) error) error {
	return database.WithTransaction(s.Ledger.Conn(), fn)
}

func wrapf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
