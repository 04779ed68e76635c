// Package services implements the inventory tree, lending and reminder
// operations on top of the repository. Every operation is scoped to an
// explicit owner id.
package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// Clock returns the current time. Services derive "today" from it.
type Clock func() time.Time

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperrors.Validation("owner id is required")
	}
	return nil
}

func requireKind(kind models.NodeKind) error {
	if !kind.Valid() {
		return apperrors.Validation("unknown node kind %q", kind)
	}
	return nil
}

// storeErr maps repository errors onto application errors. sql.ErrNoRows
// becomes NotFound for the named record; AppErrors pass through unchanged.
func storeErr(err error, what string, id models.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("%s %s not found", what, id)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrDatabase, what+" store failure", err)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func today(now Clock) models.Date {
	return models.DateOf(now())
}
