package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeInvalidTextRepresen = "22P02"
)

// ErrSequenceOutOfSync reports a minted project id that is already stored. The store is
// healthy; the counter behind the id lags the projects table (e.g. an unseeded Redis key).
var ErrSequenceOutOfSync = errors.New("project id collision: sequence backend out of sync")

// translateError turns driver errors into domain error kinds. Anything it does not
// recognise is reported as ErrStoreUnavailable with the cause attached for logging.
func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			switch pqErr.Constraint {
			case "projects_title_key":
				return domain.NewError(domain.ErrDuplicateTitle, "Project with this title already exists")
			case "members_email_key":
				return domain.NewError(domain.ErrDuplicateEmail, "Member with this email already exists")
			case "projects_project_id_key":
				return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, ErrSequenceOutOfSync)
			}
		case codeCheckViolation:
			if pqErr.Constraint == "projects_dates_check" {
				return domain.NewError(domain.ErrValidation, "End date must be greater than or equal to start date")
			}
			return domain.NewError(domain.ErrValidation, "Invalid field value")
		case codeInvalidTextRepresen:
			return domain.NewError(domain.ErrInvalidIdentifier, "Invalid id")
		}
	}
	return domain.StoreFailure(op, err)
}
