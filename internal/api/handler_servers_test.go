package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"minecraft-tracker-backend/internal/model"
)

// newTestDB opens an isolated in-memory SQLite database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Server{},
		&model.Player{},
		&model.PlayerSession{},
		&model.PopulationRecord{},
		&model.PushSubscription{},
	))
	return db
}

func setupServerRouter(db *gorm.DB) *gin.Engine {
	r := gin.Default()
	r.GET("/api/servers", GetServers(db))
	r.POST("/api/servers", CreateServer(db))
	r.DELETE("/api/servers/:server_id", DeleteServer(db))
	r.GET("/api/servers/:server_id/population", GetServerPopulation(db))
	r.GET("/api/servers/:server_id/players", GetServerPlayers(db))
	return r
}

func TestCreateServer(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	body, _ := json.Marshal(gin.H{"endpoint": "mc.example.com:25565", "version": "1.21", "max_players": 100})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/servers", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var server model.Server
	require.NoError(t, db.Where("address = ? AND port = ?", "mc.example.com", 25565).First(&server).Error)
	assert.Equal(t, "1.21", server.Version)
	assert.Equal(t, "Unknown", server.Core)

	// Registering the same endpoint again trips the unique index and
	// maps to a conflict, leaving the original row alone.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/servers", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	var serverCount int64
	require.NoError(t, db.Model(&model.Server{}).Count(&serverCount).Error)
	assert.Equal(t, int64(1), serverCount)
}

func TestCreateServer_InvalidEndpoint(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	body, _ := json.Marshal(gin.H{"endpoint": "mc.example.com:notaport"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/servers", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetServers_IncludesLatestSample(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	server := model.Server{Address: "mc.example.com", Port: 25565}
	require.NoError(t, db.Create(&server).Error)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&model.PopulationRecord{ServerID: server.ID, Online: 3, Timestamp: now.Add(-2 * time.Minute)}).Error)
	require.NoError(t, db.Create(&model.PopulationRecord{ServerID: server.ID, Online: 8, Timestamp: now.Add(-time.Minute)}).Error)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/servers", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []ServerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].LatestOnline)
	assert.Equal(t, 8, *resp[0].LatestOnline)
}

func TestDeleteServer_Cascades(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	server := model.Server{Address: "mc.example.com", Port: 25565}
	require.NoError(t, db.Create(&server).Error)
	player := model.Player{Address: server.Address, Nickname: "Alice", PlayTime: 5}
	require.NoError(t, db.Create(&player).Error)
	require.NoError(t, db.Create(&model.PlayerSession{PlayerID: player.ID, ServerID: server.ID, JoinTime: time.Now().UTC()}).Error)
	require.NoError(t, db.Create(&model.PopulationRecord{ServerID: server.ID, Online: 1, Timestamp: time.Now().UTC()}).Error)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", fmt.Sprintf("/api/servers/%d", server.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)

	var serverCount, sessionCount, populationCount, playerCount int64
	db.Model(&model.Server{}).Count(&serverCount)
	db.Model(&model.PlayerSession{}).Count(&sessionCount)
	db.Model(&model.PopulationRecord{}).Count(&populationCount)
	db.Model(&model.Player{}).Count(&playerCount)
	assert.Equal(t, int64(0), serverCount)
	assert.Equal(t, int64(0), sessionCount)
	assert.Equal(t, int64(0), populationCount)
	assert.Equal(t, int64(1), playerCount, "player rows survive server deletion")
}

func TestDeleteServer_NotFound(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/servers/9999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetServerPopulation_WindowFilter(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	server := model.Server{Address: "mc.example.com", Port: 25565}
	require.NoError(t, db.Create(&server).Error)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&model.PopulationRecord{ServerID: server.ID, Online: 4, Timestamp: now.Add(-48 * time.Hour)}).Error)
	require.NoError(t, db.Create(&model.PopulationRecord{ServerID: server.ID, Online: 6, Timestamp: now.Add(-time.Hour)}).Error)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/servers/%d/population?hours=24", server.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var samples []PopulationSample
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, 6, samples[0].Online)
}

func TestGetServerPlayers(t *testing.T) {
	db := newTestDB(t)
	router := setupServerRouter(db)

	server := model.Server{Address: "mc.example.com", Port: 25565}
	require.NoError(t, db.Create(&server).Error)

	alice := model.Player{Address: server.Address, Nickname: "Alice", PlayTime: 10}
	bob := model.Player{Address: server.Address, Nickname: "Bob", PlayTime: 3}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	now := time.Now().UTC()
	leave := now.Add(-time.Minute)
	require.NoError(t, db.Create(&model.PlayerSession{PlayerID: alice.ID, ServerID: server.ID, JoinTime: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&model.PlayerSession{PlayerID: bob.ID, ServerID: server.ID, JoinTime: now.Add(-time.Hour), LeaveTime: &leave}).Error)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/servers/%d/players", server.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []PlayerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	byName := make(map[string]PlayerResponse)
	for _, p := range resp {
		byName[p.Nickname] = p
	}
	assert.True(t, byName["Alice"].Online)
	assert.False(t, byName["Bob"].Online)
	assert.Equal(t, 10, byName["Alice"].PlayTimeMinutes)
}
