package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrSiteNotFound   = errors.New("site not found")
	ErrAlertNotFound  = errors.New("alert not found")
	ErrActionNotFound = errors.New("action not found")
	ErrHostnameTaken  = errors.New("hostname already registered")
	ErrSiteNameTaken  = errors.New("site name already taken")
	ErrSiteNotEmpty   = errors.New("site has attached devices")
	ErrAlertResolved  = errors.New("alert is resolved")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping() error {
	return s.db.Ping()
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
