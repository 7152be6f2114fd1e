package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minecraft-tracker-backend/internal/model"
)

// ServerAnalytics carries the per-server aggregates over the trailing windows.
type ServerAnalytics struct {
	ID                     int64   `json:"id"`
	Address                string  `json:"address"`
	Port                   int     `json:"port"`
	PeakOnline             int     `json:"peakOnline"`
	AvgOnline              float64 `json:"avgOnline"`
	TotalSessions          int64   `json:"totalSessions"`
	SessionDurationMinutes float64 `json:"sessionDurationMinutes"`
}

// AnalyticsResponse is the GET /api/analytics payload.
type AnalyticsResponse struct {
	TotalServers         int64             `json:"totalServers"`
	TotalPlayers         int64             `json:"totalPlayers"`
	TotalPlayTimeMinutes int64             `json:"totalPlayTimeMinutes"`
	RecentSessionsCount  int64             `json:"recentSessionsCount"`
	Servers              []ServerAnalytics `json:"servers"`
}

// GetAnalytics handles the GET /api/analytics request: global totals,
// recent session counts (7 days) and per-server population aggregates
// over the last 24 hours.
func GetAnalytics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC()
		dayAgo := now.Add(-24 * time.Hour)
		weekAgo := now.Add(-7 * 24 * time.Hour)

		var resp AnalyticsResponse

		if err := db.Model(&model.Server{}).Count(&resp.TotalServers).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to count servers"})
			return
		}
		if err := db.Model(&model.Player{}).Count(&resp.TotalPlayers).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to count players"})
			return
		}
		if err := db.Model(&model.Player{}).
			Select("COALESCE(SUM(play_time), 0)").
			Scan(&resp.TotalPlayTimeMinutes).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to sum playtime"})
			return
		}
		if err := db.Model(&model.PlayerSession{}).
			Where("join_time >= ?", weekAgo).
			Count(&resp.RecentSessionsCount).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to count recent sessions"})
			return
		}

		var servers []model.Server
		if err := db.Find(&servers).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve servers"})
			return
		}

		// Population aggregates over the last 24h, one grouped query.
		type popAgg struct {
			ServerID   int64
			PeakOnline int
			AvgOnline  float64
		}
		var popAggs []popAgg
		if err := db.Model(&model.PopulationRecord{}).
			Select("server_id, COALESCE(MAX(online), 0) as peak_online, COALESCE(AVG(online), 0) as avg_online").
			Where("timestamp >= ?", dayAgo).
			Group("server_id").
			Scan(&popAggs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate population"})
			return
		}
		popMap := make(map[int64]popAgg, len(popAggs))
		for _, a := range popAggs {
			popMap[a.ServerID] = a
		}

		// Session counts and durations over the last 7 days. Durations are
		// summed in Go since open sessions use "now" as their end.
		var recentSessions []model.PlayerSession
		if err := db.Where("join_time >= ?", weekAgo).Find(&recentSessions).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sessions"})
			return
		}
		sessionCount := make(map[int64]int64)
		sessionDuration := make(map[int64]float64)
		for _, s := range recentSessions {
			sessionCount[s.ServerID]++
			sessionDuration[s.ServerID] += s.Duration(now).Minutes()
		}

		resp.Servers = make([]ServerAnalytics, 0, len(servers))
		for _, s := range servers {
			agg := popMap[s.ID]
			resp.Servers = append(resp.Servers, ServerAnalytics{
				ID:                     s.ID,
				Address:                s.Address,
				Port:                   s.Port,
				PeakOnline:             agg.PeakOnline,
				AvgOnline:              agg.AvgOnline,
				TotalSessions:          sessionCount[s.ID],
				SessionDurationMinutes: sessionDuration[s.ID],
			})
		}

		c.JSON(http.StatusOK, resp)
	}
}

// PopulationSample is one point of the population time series.
type PopulationSample struct {
	Timestamp time.Time `json:"timestamp"`
	Online    int       `json:"online"`
}

// GetServerPopulation handles GET /api/servers/{server_id}/population.
// The optional "hours" query bounds the trailing window (default 24).
func GetServerPopulation(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverID, err := strconv.ParseInt(c.Param("server_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
			return
		}

		hours := 24
		if h := c.Query("hours"); h != "" {
			hours, err = strconv.Atoi(h)
			if err != nil || hours <= 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'hours' value"})
				return
			}
		}

		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		var records []model.PopulationRecord
		if err := db.Where("server_id = ? AND timestamp >= ?", serverID, since).
			Order("timestamp ASC").
			Find(&records).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve population history"})
			return
		}

		samples := make([]PopulationSample, 0, len(records))
		for _, rec := range records {
			samples = append(samples, PopulationSample{Timestamp: rec.Timestamp, Online: rec.Online})
		}
		c.JSON(http.StatusOK, samples)
	}
}
