package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"teamboard/internal/model"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `id, name, email, password_hash, avatar, role,
        calendar_access_token, calendar_refresh_token, calendar_expiry, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u       model.User
		access  *string
		refresh *string
		expiry  *time.Time
	)
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.Role,
		&access,
		&refresh,
		&expiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if refresh != nil || access != nil {
		u.Calendar = &model.OAuthToken{}
		if access != nil {
			u.Calendar.AccessToken = *access
		}
		if refresh != nil {
			u.Calendar.RefreshToken = *refresh
		}
		if expiry != nil {
			u.Calendar.Expiry = *expiry
		}
	}
	return &u, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	r.logger.Debug("Inserting user", zap.String("email", u.Email))
	query := `
        INSERT INTO users (id, name, email, password_hash, avatar, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
    `
	_, err := r.db.Exec(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.Avatar, u.Role, u.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert user", zap.String("email", u.Email), zap.Error(err))
		return translate(err)
	}
	r.logger.Info("User inserted successfully", zap.String("user_id", u.ID))
	return nil
}

// FindByEmail returns user by email (case-insensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// FindByIDs returns the users that exist among ids; unknown ids are absent
// from the result.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	return r.list(ctx, query, ids)
}

// List returns every user ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY name`
	return r.list(ctx, query)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query users", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			r.logger.Error("Failed to scan user row", zap.Error(err))
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateProfile writes name, email, avatar and, when non-empty, the password hash.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *model.User) error {
	r.logger.Debug("Updating user profile", zap.String("user_id", u.ID))
	query := `
        UPDATE users
        SET name = $2, email = $3, avatar = $4,
            password_hash = COALESCE(NULLIF($5, ''), password_hash),
            updated_at = $6
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, u.ID, u.Name, u.Email, u.Avatar, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update user profile", zap.String("user_id", u.ID), zap.Error(err))
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("User profile updated", zap.String("user_id", u.ID))
	return nil
}

// SaveCalendarToken persists the linked calendar credential. An empty
// refresh token keeps the stored one, since providers only send it once.
func (r *UserRepository) SaveCalendarToken(ctx context.Context, userID string, tok model.OAuthToken) error {
	r.logger.Debug("Saving calendar token", zap.String("user_id", userID))
	query := `
        UPDATE users
        SET calendar_access_token = $2,
            calendar_refresh_token = COALESCE(NULLIF($3, ''), calendar_refresh_token),
            calendar_expiry = $4,
            updated_at = NOW()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, userID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
	if err != nil {
		r.logger.Error("Failed to save calendar token", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Calendar token saved", zap.String("user_id", userID))
	return nil
}

// Role returns the role of a user for the role-based policy.
func (r *UserRepository) Role(ctx context.Context, userID string) (string, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	return role, translate(err)
}
