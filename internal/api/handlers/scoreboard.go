package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kalaharena/backend/internal/store"
)

// GetScoreboard returns the standings for one game kind as JSON
func GetScoreboard(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := c.Param("kind")
		rows, err := st.Scoreboard(context.Background(), kind)
		if err != nil {
			log.Printf("[API] Scoreboard query failed for %s: %v", kind, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scoreboard unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"game": kind, "scores": rows})
	}
}

// GetPlayerScore returns one player's record for a game kind, zeroed when absent
func GetPlayerScore(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		kind := c.Param("kind")
		row, err := st.UserScore(context.Background(), username, kind)
		if err != nil {
			log.Printf("[API] Player score query failed for %s/%s: %v", username, kind, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, row)
	}
}
