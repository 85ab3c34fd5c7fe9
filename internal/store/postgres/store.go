// Package postgres implements the shift, recipient, template, reminder and
// week stores on top of a lib/pq connection pool.
package postgres

import (
	"database/sql"

	"shift-notify/internal/common/logger"
)

// Store groups every query the notification pipeline issues. It is safe for
// concurrent use.
type Store struct {
	db         *sql.DB
	usersTable string
	logger     logger.Logger
}

type Option func(*Store)

// WithUsersTable overrides the table holding recipients and their
// preference columns.
func WithUsersTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.usersTable = name
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		usersTable: "users",
		logger:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
