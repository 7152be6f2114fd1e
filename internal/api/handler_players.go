package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minecraft-tracker-backend/internal/model"
)

// PlayerResponse represents one player in API responses.
type PlayerResponse struct {
	Nickname        string `json:"nickname"`
	Address         string `json:"address"`
	PlayTimeMinutes int    `json:"playTimeMinutes"`
	Online          bool   `json:"online"`
}

// GetServerPlayers handles GET /api/servers/{server_id}/players: every
// player ever seen on the server, with cumulative playtime and whether
// they currently hold an open session.
func GetServerPlayers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverID, err := strconv.ParseInt(c.Param("server_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
			return
		}

		var players []model.Player
		if err := db.Model(&model.Player{}).
			Distinct("players.*").
			Joins("JOIN player_sessions ps ON ps.player_id = players.id").
			Where("ps.server_id = ?", serverID).
			Find(&players).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve players"})
			return
		}

		var openPlayerIDs []int64
		if err := db.Model(&model.PlayerSession{}).
			Where("server_id = ? AND leave_time IS NULL", serverID).
			Pluck("player_id", &openPlayerIDs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve open sessions"})
			return
		}
		openSet := make(map[int64]bool, len(openPlayerIDs))
		for _, id := range openPlayerIDs {
			openSet[id] = true
		}

		responses := make([]PlayerResponse, 0, len(players))
		for _, p := range players {
			responses = append(responses, PlayerResponse{
				Nickname:        p.Nickname,
				Address:         p.Address,
				PlayTimeMinutes: p.PlayTime,
				Online:          openSet[p.ID],
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// GetTopPlayers handles GET /api/players/top, the playtime leaderboard.
// The optional "limit" query defaults to 10.
func GetTopPlayers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 10
		if l := c.Query("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed <= 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' value"})
				return
			}
			limit = parsed
		}

		var players []model.Player
		if err := db.Order("play_time DESC").Limit(limit).Find(&players).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve players"})
			return
		}

		responses := make([]PlayerResponse, 0, len(players))
		for _, p := range players {
			responses = append(responses, PlayerResponse{
				Nickname:        p.Nickname,
				Address:         p.Address,
				PlayTimeMinutes: p.PlayTime,
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}
