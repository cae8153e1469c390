// Package repository implements credential persistence on SQLite.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"duck-intake/internal/domain"
)

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	return err
}

const timeLayout = "2006-01-02T15:04:05Z"

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
