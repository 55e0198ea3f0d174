package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

const memberColumns = `id, name, email, password_hash, role, created_at, updated_at`

// PostgresMemberRepository implements domain.MemberRepository using PostgreSQL
type PostgresMemberRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresMemberRepository creates a new member repository
func NewPostgresMemberRepository(db *sql.DB, logger *slog.Logger) *PostgresMemberRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMemberRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*domain.Member, error) {
	m := &domain.Member{}
	var email sql.NullString
	var role string
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&email,
		&m.PasswordHash,
		&role,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Email = email.String
	m.Role = domain.Role(role)
	return m, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func memberNotFound() error {
	return domain.NewError(domain.ErrNotFound, "Member not found")
}

// Create inserts a member and fills in the store-assigned fields
func (r *PostgresMemberRepository) Create(ctx context.Context, member *domain.Member) error {
	query := `
		INSERT INTO members (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		member.Name,
		nullableString(member.Email),
		member.PasswordHash,
		string(member.Role),
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create member",
			slog.String("email", member.Email),
			slog.String("error", err.Error()),
		)
		return translateError("create member", err)
	}

	return nil
}

// GetByID retrieves a member by ID
func (r *PostgresMemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	member, err := scanMember(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, memberNotFound()
		}
		r.logger.Error("failed to get member by id",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, translateError("get member", err)
	}

	return member, nil
}

// GetByEmail retrieves a member by normalized email
func (r *PostgresMemberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`

	member, err := scanMember(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, memberNotFound()
		}
		return nil, translateError("get member by email", err)
	}

	return member, nil
}

// GetByIDs returns the members that still exist among ids
func (r *PostgresMemberRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ANY($1)`
	return r.query(ctx, "get members by ids", query, pq.Array(ids))
}

// List returns all members, newest first
func (r *PostgresMemberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY created_at DESC`
	return r.query(ctx, "list members", query)
}

func (r *PostgresMemberRepository) query(ctx context.Context, op, query string, args ...any) ([]*domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query members",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, translateError(op, err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			r.logger.Error("failed to scan member row",
				slog.String("error", err.Error()),
			)
			return nil, translateError(op, err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(op, err)
	}

	return members, nil
}

// Update overwrites the mutable member fields
func (r *PostgresMemberRepository) Update(ctx context.Context, member *domain.Member) error {
	query := `
		UPDATE members
		SET name = $1, email = $2, password_hash = $3, role = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		member.Name,
		nullableString(member.Email),
		member.PasswordHash,
		string(member.Role),
		member.ID,
	).Scan(&member.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return memberNotFound()
		}
		return translateError("update member", err)
	}

	return nil
}

// Delete removes a member. Projects referencing the member are left as they are.
func (r *PostgresMemberRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return translateError("delete member", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translateError("delete member", err)
	}

	if rows == 0 {
		return memberNotFound()
	}

	return nil
}
