package models

import "time"

// User represents a registered player
type User struct {
	ID             int       `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	PasswordDigest string    `db:"password_digest" json:"-"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// GameScore is one user's record for a single game kind
type GameScore struct {
	Username string `db:"username" json:"username"`
	Game     string `db:"game" json:"game"`
	Wins     int    `db:"wins" json:"wins"`
	Draws    int    `db:"draws" json:"draws"`
	Losses   int    `db:"losses" json:"losses"`
}

// AdminAccount is an operator login for the status API
type AdminAccount struct {
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
