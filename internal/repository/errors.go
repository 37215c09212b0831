package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"parking-anpr/internal/domain/parking"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// storageError tags driver failures with ErrStorageUnavailable and passes
// domain errors through untouched.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, parking.ErrSessionConflict),
		errors.Is(err, parking.ErrSessionNotFound),
		errors.Is(err, parking.ErrInvalidDuration),
		errors.Is(err, parking.ErrStorageUnavailable):
		return err
	}
	return fmt.Errorf("%w: %s: %w", parking.ErrStorageUnavailable, op, err)
}
