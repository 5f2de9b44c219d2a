package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kalaharena/backend/internal/models"
)

// ErrDuplicateUser is returned by CreateUser when the username is taken.
var ErrDuplicateUser = errors.New("username already registered")

// Valid score fields for IncrementScore
const (
	FieldWins   = "wins"
	FieldDraws  = "draws"
	FieldLosses = "losses"
)

// Store persists users and per-game score records in Postgres.
// Every mutation is a single-row statement, so concurrent writers stay safe
// even though the arbiter loop is the only expected caller.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new user, failing with ErrDuplicateUser on a username collision
func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_digest, ip_address, created_at)
		VALUES ($1, $2, $3, NOW())
	`, user.Username, user.PasswordDigest, user.IPAddress)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns the user for username, or nil when no such user exists
func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, password_digest, ip_address, created_at
		FROM users WHERE username = $1
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// IPRegistered reports whether any user was registered from the given address
func (s *Store) IPRegistered(ctx context.Context, ip string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM users WHERE ip_address = $1)`, ip)
	if err != nil {
		return false, fmt.Errorf("check ip: %w", err)
	}
	return exists, nil
}

// EnsureScores idempotently creates a zeroed score row for each named user
// that does not yet have one for the given game.
func (s *Store) EnsureScores(ctx context.Context, usernames []string, game string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scores (username, game, wins, draws, losses)
		SELECT u.username, $2, 0, 0, 0
		FROM users u WHERE u.username = ANY($1)
		ON CONFLICT (username, game) DO NOTHING
	`, pq.Array(usernames), game)
	if err != nil {
		return fmt.Errorf("ensure scores: %w", err)
	}
	return nil
}

// IncrementScore adds one to a single score field for (username, game).
// field must be one of FieldWins, FieldDraws, FieldLosses.
func (s *Store) IncrementScore(ctx context.Context, username, game, field string) error {
	switch field {
	case FieldWins, FieldDraws, FieldLosses:
	default:
		return fmt.Errorf("invalid score field %q", field)
	}
	// field is validated above, so building the column name is safe
	q := fmt.Sprintf(`UPDATE scores SET %s = %s + 1 WHERE username = $1 AND game = $2`, field, field)
	if _, err := s.db.ExecContext(ctx, q, username, game); err != nil {
		return fmt.Errorf("increment %s: %w", field, err)
	}
	return nil
}

// Scoreboard returns the score rows of every user with a record for game
func (s *Store) Scoreboard(ctx context.Context, game string) ([]models.GameScore, error) {
	var rows []models.GameScore
	err := s.db.SelectContext(ctx, &rows, `
		SELECT username, game, wins, draws, losses
		FROM scores WHERE game = $1
		ORDER BY wins DESC, draws DESC, losses DESC, username DESC
	`, game)
	if err != nil {
		return nil, fmt.Errorf("scoreboard: %w", err)
	}
	return rows, nil
}

// UserScore returns the record for (username, game), zeroed when absent
func (s *Store) UserScore(ctx context.Context, username, game string) (models.GameScore, error) {
	var row models.GameScore
	err := s.db.GetContext(ctx, &row, `
		SELECT username, game, wins, draws, losses
		FROM scores WHERE username = $1 AND game = $2
	`, username, game)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GameScore{Username: username, Game: game}, nil
	}
	if err != nil {
		return models.GameScore{}, fmt.Errorf("user score: %w", err)
	}
	return row, nil
}
