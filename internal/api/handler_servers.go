package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minecraft-tracker-backend/internal/model"
	"minecraft-tracker-backend/internal/parse"
)

// ServerResponse represents the API response for a single registered server.
type ServerResponse struct {
	ID           int64      `json:"id"`
	Address      string     `json:"address"`
	Port         int        `json:"port"`
	MOTD         string     `json:"motd"`
	Version      string     `json:"version"`
	MaxPlayers   int        `json:"maxPlayers"`
	OnlineMode   bool       `json:"onlineMode"`
	Core         string     `json:"core"`
	LatestOnline *int       `json:"latestOnline"`
	LatestSample *time.Time `json:"latestSample"`
}

// GetServers handles the GET /api/servers request. Each server carries its
// most recent population sample, when one exists.
func GetServers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var servers []model.Server
		if err := db.Find(&servers).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve servers"})
			return
		}

		// Latest population record per server in one query.
		var latest []model.PopulationRecord
		sub := db.Model(&model.PopulationRecord{}).Select("MAX(id)").Group("server_id")
		if err := db.Where("id IN (?)", sub).Find(&latest).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve population samples"})
			return
		}
		latestMap := make(map[int64]model.PopulationRecord, len(latest))
		for _, rec := range latest {
			latestMap[rec.ServerID] = rec
		}

		responses := make([]ServerResponse, 0, len(servers))
		for _, s := range servers {
			resp := ServerResponse{
				ID:         s.ID,
				Address:    s.Address,
				Port:       s.Port,
				MOTD:       s.MOTD,
				Version:    s.Version,
				MaxPlayers: s.MaxPlayers,
				OnlineMode: s.OnlineMode,
				Core:       s.Core,
			}
			if rec, ok := latestMap[s.ID]; ok {
				online := rec.Online
				ts := rec.Timestamp
				resp.LatestOnline = &online
				resp.LatestSample = &ts
			}
			responses = append(responses, resp)
		}
		c.JSON(http.StatusOK, responses)
	}
}

type createServerRequest struct {
	Endpoint   string `json:"endpoint" binding:"required"`
	MOTD       string `json:"motd"`
	Version    string `json:"version"`
	MaxPlayers int    `json:"max_players"`
	OnlineMode bool   `json:"online_mode"`
	Core       string `json:"core"`
}

// CreateServer handles the POST /api/servers request.
func CreateServer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createServerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ep, err := parse.ParseEndpoint(req.Endpoint)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		core := req.Core
		if core == "" {
			core = "Unknown"
		}

		server := model.Server{
			Address:    ep.Address,
			Port:       ep.Port,
			MOTD:       req.MOTD,
			Version:    req.Version,
			MaxPlayers: req.MaxPlayers,
			OnlineMode: req.OnlineMode,
			Core:       core,
		}

		// The composite unique index on (address, port) arbitrates
		// duplicates, so concurrent registrations of the same endpoint
		// both resolve to a conflict rather than one of them failing.
		if err := db.Create(&server).Error; err != nil {
			var existing model.Server
			if lookupErr := db.Where("address = ? AND port = ?", ep.Address, ep.Port).First(&existing).Error; lookupErr == nil {
				c.JSON(http.StatusConflict, gin.H{"error": "server is already registered"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": server.ID})
	}
}

// DeleteServer handles the DELETE /api/servers/{server_id} request. The
// server's sessions, population records and subscription links go with it
// in one transaction.
func DeleteServer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverID, err := strconv.ParseInt(c.Param("server_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
			return
		}

		var server model.Server
		if err := db.First(&server, serverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("server_id = ?", serverID).Delete(&model.PlayerSession{}).Error; err != nil {
				return err
			}
			if err := tx.Where("server_id = ?", serverID).Delete(&model.PopulationRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM subscription_server_mapping WHERE server_id = ?", serverID).Error; err != nil {
				return err
			}
			return tx.Delete(&model.Server{}, serverID).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
