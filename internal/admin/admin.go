package admin

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/kalaharena/backend/internal/models"
)

// GetAdminAccount retrieves an admin account by username, nil if missing
func GetAdminAccount(db *sqlx.DB, username string) (*models.AdminAccount, error) {
	var acc models.AdminAccount
	err := db.Get(&acc, `
		SELECT username, password_hash, created_at, updated_at
		FROM admin_accounts WHERE username = $1
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// VerifyPassword checks a plaintext password against the stored bcrypt hash
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CreateAdminAccount creates or updates an admin account (used for seeding)
func CreateAdminAccount(db *sqlx.DB, username, plainPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO admin_accounts (username, password_hash, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			updated_at = NOW()
	`, username, string(hash))

	return err
}
