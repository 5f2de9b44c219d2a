package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"

	"github.com/kalaharena/backend/internal/admin"
	"github.com/kalaharena/backend/internal/config"
	"github.com/kalaharena/backend/internal/server"
)

// AdminLogin validates operator credentials and issues a session token
func AdminLogin(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		acc, err := admin.GetAdminAccount(db, strings.TrimSpace(req.Username))
		if err != nil {
			log.Printf("[ADMIN] Account lookup failed for %s: %v", req.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		if acc == nil || !admin.VerifyPassword(acc.PasswordHash, req.Password) {
			log.Printf("[ADMIN] Login failed for username %s", req.Username)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		ttl := time.Duration(cfg.AdminSessionTTLMin) * time.Minute
		claims := jwt.RegisteredClaims{
			Subject:   acc.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			log.Printf("[ADMIN] Failed to sign token for %s: %v", acc.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(ttl.Seconds())})
	}
}

// AdminAuth is the middleware guarding admin routes with a bearer token
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok {
			c.Set("admin_username", claims.Subject)
		}
		c.Next()
	}
}

// AdminOverview reports runtime counters plus store aggregates
func AdminOverview(db *sqlx.DB, arb *server.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userCount int
		if err := db.Get(&userCount, `SELECT COUNT(*) FROM users`); err != nil {
			log.Printf("[ADMIN] User count query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}

		var gamesRecorded int
		if err := db.Get(&gamesRecorded, `SELECT COALESCE(SUM(wins + draws + losses), 0) FROM scores`); err != nil {
			log.Printf("[ADMIN] Score aggregate query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"runtime":        arb.Stats(),
			"users":          userCount,
			"score_entries":  gamesRecorded / 2, // each game writes two rows' worth of increments
			"admin_username": c.GetString("admin_username"),
		})
	}
}
