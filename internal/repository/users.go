package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajibnet/ajibot/internal/domain"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, telegram_id, first_name, username, language, trial_used, is_admin, created_at, updated_at`

// FindOrCreate returns the user for a Telegram ID, creating it on first
// contact. The second return value reports whether the user was created.
func (s *UserStore) FindOrCreate(ctx context.Context, telegramID int64, firstName, username, language string, isAdmin bool) (*domain.User, bool, error) {
	user, err := s.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (telegram_id, first_name, username, language, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE SET first_name = EXCLUDED.first_name, username = EXCLUDED.username
		RETURNING `+userColumns,
		telegramID, firstName, username, language, isAdmin,
	)
	user, err = scanUser(row)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func (s *UserStore) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanUser(row)
}

func (s *UserStore) SetLanguage(ctx context.Context, telegramID int64, language string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET language = $2, updated_at = NOW() WHERE telegram_id = $1`,
		telegramID, language,
	)
	if err != nil {
		return fmt.Errorf("set user language: %w", err)
	}
	return nil
}

func (s *UserStore) MarkTrialUsed(ctx context.Context, telegramID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET trial_used = TRUE, updated_at = NOW() WHERE telegram_id = $1`,
		telegramID,
	)
	if err != nil {
		return fmt.Errorf("mark trial used: %w", err)
	}
	return nil
}

// ListTelegramIDs returns all known user chat IDs for broadcast.
func (s *UserStore) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT telegram_id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

// RecordBroadcast stores the outcome of an admin broadcast for audit.
func (s *UserStore) RecordBroadcast(ctx context.Context, messageText string, sent, failed int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO broadcasts (message_text, sent_count, failed_count)
		VALUES ($1, $2, $3)`,
		messageText, sent, failed,
	)
	if err != nil {
		return fmt.Errorf("record broadcast: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.FirstName, &u.Username, &u.Language,
		&u.TrialUsed, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
