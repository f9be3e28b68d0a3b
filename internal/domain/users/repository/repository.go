package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// ErrUserNotFound пользователь с таким telegram id не зарегистрирован
var ErrUserNotFound = errors.New("user not found")

// Querier часть *pgxpool.Pool, которой пользуется репозиторий
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// UserRepository реализация хранилища пользователей на PostgreSQL
type UserRepository struct {
	db Querier
}

// NewUserRepository создает новый экземпляр UserRepository
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, telegram_id, telegram_username, api_token, created_at, updated_at"

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.TelegramID, &user.TelegramUsername, &user.APIToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateUser регистрирует пользователя или обновляет его username
func (r *UserRepository) GetOrCreateUser(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	query := `
        INSERT INTO users (telegram_id, telegram_username)
        VALUES ($1, $2)
        ON CONFLICT (telegram_id) DO UPDATE
            SET telegram_username = EXCLUDED.telegram_username, updated_at = now()
        RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return user, nil
}

// GetUserByTelegramID получает пользователя по ID telegram. Если пользователя нет, возвращает nil.
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE telegram_id = $1", telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by telegram id: %w", err)
	}
	return user, nil
}

// SetAPIToken привязывает токен бэкенда к пользователю
func (r *UserRepository) SetAPIToken(ctx context.Context, telegramID int64, token string) error {
	tag, err := r.db.Exec(ctx, "UPDATE users SET api_token = $1, updated_at = now() WHERE telegram_id = $2", token, telegramID)
	if err != nil {
		return fmt.Errorf("failed to set api token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
