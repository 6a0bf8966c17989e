// Package storage implements the PostgreSQL-backed persistence the
// commitment tree and nullifier set fall through to once their
// in-memory caches miss, so a prover/indexer can rebuild witnesses
// across restarts (spec.md §3, §4.3 Auxiliary).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccoin/core/internal/merkletree"
	"github.com/ccoin/core/internal/nullifier"
)

// Common errors.
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrDBConnection = errors.New("storage: database connection error")
)

// PostgresStore implements persistent storage for the commitment
// tree's nodes and the nullifier set using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "ccoin",
		Password: "",
		Database: "ccoin",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// ============================================
// merkletree.Store
// ============================================

// GetNode retrieves a tree node by level and index. It satisfies
// internal/merkletree.Store.
func (s *PostgresStore) GetNode(ctx context.Context, level, index uint64) (fr.Element, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM tree_nodes WHERE level = $1 AND idx = $2`,
		level, index,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return fr.Element{}, merkletree.ErrLeafNotFound
	}
	if err != nil {
		return fr.Element{}, err
	}
	return elementFromBytes(raw), nil
}

// SetNode stores a tree node. It satisfies internal/merkletree.Store.
func (s *PostgresStore) SetNode(ctx context.Context, level, index uint64, value fr.Element) error {
	b := value.Bytes()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_nodes (level, idx, value) VALUES ($1, $2, $3)
		 ON CONFLICT (level, idx) DO UPDATE SET value = $3`,
		level, index, b[:],
	)
	return err
}

// GetRoot returns the persisted tree root, if any. It satisfies
// internal/merkletree.Store.
func (s *PostgresStore) GetRoot(ctx context.Context) (fr.Element, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT root FROM tree_state WHERE id = 1`).Scan(&raw)
	if err == pgx.ErrNoRows {
		return fr.Element{}, false, nil
	}
	if err != nil {
		return fr.Element{}, false, err
	}
	return elementFromBytes(raw), true, nil
}

// SetRoot persists the tree root. It satisfies internal/merkletree.Store.
func (s *PostgresStore) SetRoot(ctx context.Context, root fr.Element) error {
	b := root.Bytes()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_state (id, root) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET root = $1`,
		b[:],
	)
	return err
}

// GetSize returns the persisted leaf count. It satisfies
// internal/merkletree.Store.
func (s *PostgresStore) GetSize(ctx context.Context) (uint64, error) {
	var size uint64
	err := s.pool.QueryRow(ctx, `SELECT size FROM tree_state WHERE id = 1`).Scan(&size)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return size, err
}

// SetSize persists the leaf count. It satisfies internal/merkletree.Store.
func (s *PostgresStore) SetSize(ctx context.Context, size uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_state (id, size) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET size = $1`,
		size,
	)
	return err
}

// ============================================
// nullifier.Store
// ============================================

// HasNullifier reports whether n has already been recorded spent. It
// satisfies internal/nullifier.Store.
func (s *PostgresStore) HasNullifier(ctx context.Context, n fr.Element) (bool, error) {
	b := n.Bytes()
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nullifiers WHERE nullifier = $1)`,
		b[:],
	).Scan(&exists)
	return exists, err
}

// AddNullifier records n as spent by txHash at treeIndex. It
// satisfies internal/nullifier.Store.
func (s *PostgresStore) AddNullifier(ctx context.Context, n fr.Element, txHash fr.Element, treeIndex uint64) error {
	nb := n.Bytes()
	tb := txHash.Bytes()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nullifiers (nullifier, tx_hash, tree_index) VALUES ($1, $2, $3)
		 ON CONFLICT (nullifier) DO NOTHING`,
		nb[:], tb[:], treeIndex,
	)
	return err
}

func elementFromBytes(raw []byte) fr.Element {
	var e fr.Element
	e.SetBytes(raw)
	return e
}
