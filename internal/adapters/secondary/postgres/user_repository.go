package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/lorrc/support-chat-gateway/internal/core/utils"
)

// UserRepository persists the user projection of authenticated identities.
type UserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserStore = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, role, status, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u      domain.User
		email  pgtype.Text
		role   string
		status string
	)
	if err := row.Scan(&u.UserID, &email, &role, &status, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Email = utils.FromString(email)
	u.Role = domain.Role(role)
	u.Status = domain.Presence(status)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Persistence("find user", err)
	}
	return u, nil
}

// Create inserts an offline user for the identity. Creating a user that
// already exists refreshes its email and role and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	user, err := domain.NewUser(identity)
	if err != nil {
		return nil, err
	}

	const query = `
INSERT INTO users (id, email, role, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, role = EXCLUDED.role
RETURNING ` + userColumns

	u, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		user.UserID, utils.ToString(user.Email), string(user.Role), string(user.Status)))
	if err != nil {
		return nil, apperrors.Persistence("create user", err)
	}
	return u, nil
}

func (r *UserRepository) SetPresence(ctx context.Context, userID string, presence domain.Presence) error {
	const query = `UPDATE users SET status = $2 WHERE id = $1`

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, userID, string(presence))
	if err != nil {
		return apperrors.Persistence("set presence", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// ResetPresence marks every user offline and returns how many rows changed.
// Run at startup, before any connection is accepted.
func (r *UserRepository) ResetPresence(ctx context.Context) (int64, error) {
	const query = `UPDATE users SET status = $1 WHERE status <> $1`

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, string(domain.PresenceOffline))
	if err != nil {
		return 0, apperrors.Persistence("reset presence", err)
	}
	return tag.RowsAffected(), nil
}
