package server

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/kalaharena/backend/internal/models"
	"github.com/kalaharena/backend/internal/store"
)

const maxNameLength = 20

// loopback is exempt from the one-registration-per-ip rule for local testing
const loopback = "127.0.0.1"

// UserStore is the slice of the persistent store the auth manager needs
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	IPRegistered(ctx context.Context, ip string) (bool, error)
}

// AuthManager handles registration and login for arbiter sessions
type AuthManager struct {
	store UserStore
}

func NewAuthManager(st UserStore) *AuthManager {
	return &AuthManager{store: st}
}

// digest is the hex SHA-512 of the ASCII password, the format stored for
// every user since the first deployment.
func digest(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register creates a new user bound to the session's IP. Only one
// registration is allowed per remote address, loopback excepted.
func (am *AuthManager) Register(ctx context.Context, s *Session, name, password string) error {
	log.Printf("[AUTH] Register %s from %s", name, s.RemoteIP())

	if s.RemoteIP() != loopback {
		taken, err := am.store.IPRegistered(ctx, s.RemoteIP())
		if err != nil {
			log.Printf("[AUTH] IP lookup failed for %s: %v", s.RemoteIP(), err)
			return fmt.Errorf("Registration failed")
		}
		if taken {
			return fmt.Errorf("Only one registration per ip")
		}
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("Names must be no more than %d characters", maxNameLength)
	}

	err := am.store.CreateUser(ctx, models.User{
		Username:       name,
		PasswordDigest: digest(password),
		IPAddress:      s.RemoteIP(),
	})
	if errors.Is(err, store.ErrDuplicateUser) {
		return fmt.Errorf("Already registered")
	}
	if err != nil {
		log.Printf("[AUTH] Failed to insert user %s: %v", name, err)
		return fmt.Errorf("Registration failed")
	}
	return nil
}

// Auth verifies credentials and binds the username to the session. The
// binding is permanent: a live session cannot switch identity, or results
// would be credited to the wrong user when its game is reaped.
func (am *AuthManager) Auth(ctx context.Context, s *Session, name, password string) error {
	log.Printf("[AUTH] Session %d auth as %s", s.ID(), name)

	if s.Authed() {
		return fmt.Errorf("Already authed")
	}

	user, err := am.store.GetUser(ctx, name)
	if err != nil {
		log.Printf("[AUTH] User lookup failed for %s: %v", name, err)
		return fmt.Errorf("Invalid credentials")
	}
	if user == nil {
		return fmt.Errorf("Invalid credentials")
	}
	if subtle.ConstantTimeCompare([]byte(digest(password)), []byte(user.PasswordDigest)) != 1 {
		return fmt.Errorf("Invalid credentials")
	}
	s.name = name
	return nil
}
