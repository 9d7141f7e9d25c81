package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

const pgUniqueViolation = "23505"

var _ CredentialStore = (*PostgresAuthRepo)(nil)

// CredentialStore persists one record per identity.
// Lookups and conditional writes that match nothing return types.ErrNotFound.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	FindByUsername(ctx context.Context, username string) (*types.UserAuth, error)
	FindByID(ctx context.Context, id string) (*types.UserAuth, error)
	// FindByResetToken matches the stored fingerprint exactly, expired or not.
	FindByResetToken(ctx context.Context, tokenHash string) (*types.UserAuth, error)

	// Insert returns types.ErrDuplicateIdentity when username or email is taken.
	Insert(ctx context.Context, user types.NewUser) (string, error)
	Update(ctx context.Context, id string, upd types.UserUpdate) (*types.UserAuth, error)
	Delete(ctx context.Context, id string) (bool, error)

	// ConsumeVerificationCode marks the account verified and clears the code in one write,
	// only while the stored code still equals code and has not expired at now.
	ConsumeVerificationCode(ctx context.Context, id, code string, now time.Time) (*types.UserAuth, error)
	// ConsumeResetToken swaps the password hash and clears the token in one write,
	// only while the stored fingerprint still equals tokenHash and has not expired at now.
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*types.UserAuth, error)
	// RecordLogin stamps last_login_at only while the password hash is still the one that was verified.
	RecordLogin(ctx context.Context, id, passwordHash string, at time.Time) (*types.UserAuth, error)

	Ping(ctx context.Context) error
}

// pgxIface is the subset of *pgxpool.Pool the repository needs.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const userColumns = `id, username, email, password_hash, role, email_verified,
	verification_code, verification_code_expires_at,
	reset_token, reset_token_expires_at,
	last_login_at, created_at, updated_at`

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool pgxIface
	now    func() time.Time
}

func NewPostgresAuthRepo(pgpool pgxIface, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
		now:    time.Now,
	}
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "users"),
	}, attrs...)
	return otel.Tracer("AuthRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func scanUser(row pgx.Row) (*types.UserAuth, error) {
	var (
		u    types.UserAuth
		id   uuid.UUID
		role string
	)
	err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &role, &u.EmailVerified,
		&u.VerificationCode, &u.VerificationCodeExpiresAt,
		&u.ResetToken, &u.ResetTokenExpiresAt,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = id.String()
	u.Role = types.Role(role)
	return &u, nil
}

func (r *PostgresAuthRepo) findOne(ctx context.Context, spanName, where string, arg any) (*types.UserAuth, error) {
	ctx, span := startSpan(ctx, spanName, "SELECT")
	defer span.End()

	query := "SELECT " + userColumns + " FROM users WHERE " + where
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("%s: query failed: %w", spanName, err)
	}
	span.SetStatus(codes.Ok, "")
	return user, nil
}

func (r *PostgresAuthRepo) FindByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return r.findOne(ctx, "FindByEmail", "email = $1", email)
}

func (r *PostgresAuthRepo) FindByUsername(ctx context.Context, username string) (*types.UserAuth, error) {
	return r.findOne(ctx, "FindByUsername", "username = $1", username)
}

func (r *PostgresAuthRepo) FindByID(ctx context.Context, id string) (*types.UserAuth, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, types.ErrNotFound
	}
	return r.findOne(ctx, "FindByID", "id = $1", uid)
}

func (r *PostgresAuthRepo) FindByResetToken(ctx context.Context, tokenHash string) (*types.UserAuth, error) {
	return r.findOne(ctx, "FindByResetToken", "reset_token = $1", tokenHash)
}

func (r *PostgresAuthRepo) Insert(ctx context.Context, user types.NewUser) (string, error) {
	ctx, span := startSpan(ctx, "Insert", "INSERT", attribute.String("db.user.email", user.Email))
	defer span.End()
	l := r.logger.With(slog.String("method", "Insert"))

	role := user.Role
	if role == "" {
		role = types.RoleUser
	}

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		user.Username, user.Email, user.PasswordHash, string(role)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			l.WarnContext(ctx, "Unique constraint rejected insert", slog.String("email", user.Email))
			span.SetStatus(codes.Error, "duplicate identity")
			return "", types.ErrDuplicateIdentity
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return "", fmt.Errorf("insert user: %w", err)
	}

	span.SetAttributes(attribute.String("db.user.id", id.String()))
	span.SetStatus(codes.Ok, "")
	return id.String(), nil
}

func (r *PostgresAuthRepo) Update(ctx context.Context, id string, upd types.UserUpdate) (*types.UserAuth, error) {
	ctx, span := startSpan(ctx, "Update", "UPDATE", attribute.String("db.user.id", id))
	defer span.End()
	l := r.logger.With(slog.String("method", "Update"), slog.String("userID", id))

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, types.ErrNotFound
	}
	if upd.Empty() {
		return r.FindByID(ctx, id)
	}

	var setClauses []string
	var args []interface{}
	argID := 1

	set := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
		span.SetAttributes(attribute.Bool("update."+column, true))
	}
	setSecret := func(column, expiresColumn string, secret *types.SecretUpdate) {
		if secret.Value == "" {
			setClauses = append(setClauses, column+" = NULL", expiresColumn+" = NULL")
			span.SetAttributes(attribute.Bool("clear."+column, true))
			return
		}
		set(column, secret.Value)
		set(expiresColumn, secret.ExpiresAt)
	}

	if upd.Username != nil {
		set("username", *upd.Username)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		set("role", string(*upd.Role))
	}
	if upd.EmailVerified != nil {
		set("email_verified", *upd.EmailVerified)
	}
	if upd.VerificationCode != nil {
		setSecret("verification_code", "verification_code_expires_at", upd.VerificationCode)
	}
	if upd.ResetToken != nil {
		setSecret("reset_token", "reset_token_expires_at", upd.ResetToken)
	}
	if upd.LastLoginAt != nil {
		set("last_login_at", *upd.LastLoginAt)
	}
	set("updated_at", r.now())

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, userColumns)
	args = append(args, uid)

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			span.SetStatus(codes.Error, "user not found")
			return nil, types.ErrNotFound
		case isUniqueViolation(err):
			span.SetStatus(codes.Error, "duplicate identity")
			return nil, types.ErrDuplicateIdentity
		}
		l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("update user: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return user, nil
}

func (r *PostgresAuthRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "Delete", "DELETE", attribute.String("db.user.id", id))
	defer span.End()

	uid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", uid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return false, fmt.Errorf("delete user: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

// conditional runs an UPDATE ... RETURNING and maps zero matched rows to types.ErrNotFound.
func (r *PostgresAuthRepo) conditional(ctx context.Context, spanName, query string, args ...any) (*types.UserAuth, error) {
	ctx, span := startSpan(ctx, spanName, "UPDATE")
	defer span.End()

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetAttributes(attribute.Bool("db.cas.matched", false))
			span.SetStatus(codes.Ok, "no match")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "conditional update failed")
		return nil, fmt.Errorf("%s: %w", spanName, err)
	}
	span.SetAttributes(attribute.Bool("db.cas.matched", true))
	span.SetStatus(codes.Ok, "")
	return user, nil
}

func (r *PostgresAuthRepo) ConsumeVerificationCode(ctx context.Context, id, code string, now time.Time) (*types.UserAuth, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, types.ErrNotFound
	}
	return r.conditional(ctx, "ConsumeVerificationCode",
		`UPDATE users
		 SET email_verified = TRUE,
		     verification_code = NULL,
		     verification_code_expires_at = NULL,
		     updated_at = $3
		 WHERE id = $1
		   AND verification_code = $2
		   AND verification_code_expires_at > $3
		 RETURNING `+userColumns,
		uid, code, now)
}

func (r *PostgresAuthRepo) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*types.UserAuth, error) {
	return r.conditional(ctx, "ConsumeResetToken",
		`UPDATE users
		 SET password_hash = $2,
		     reset_token = NULL,
		     reset_token_expires_at = NULL,
		     updated_at = $3
		 WHERE reset_token = $1
		   AND reset_token_expires_at > $3
		 RETURNING `+userColumns,
		tokenHash, newPasswordHash, now)
}

func (r *PostgresAuthRepo) RecordLogin(ctx context.Context, id, passwordHash string, at time.Time) (*types.UserAuth, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, types.ErrNotFound
	}
	return r.conditional(ctx, "RecordLogin",
		`UPDATE users
		 SET last_login_at = $3
		 WHERE id = $1
		   AND password_hash = $2
		 RETURNING `+userColumns,
		uid, passwordHash, at)
}

func (r *PostgresAuthRepo) Ping(ctx context.Context) error {
	return r.pgpool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
