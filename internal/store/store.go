package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"minecraft-tracker-backend/internal/model"
)

// Store defines the persistence operations used by the tracking cycle.
type Store interface {
	ListServers(ctx context.Context) ([]model.Server, error)
	RecordPopulation(ctx context.Context, serverID int64, online int, now time.Time) error
	ReconcileSessions(ctx context.Context, server model.Server, names []string, now time.Time, intervalMinutes int) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB

	// serverLocks serializes reconciliation per server ID so that at most
	// one reconcile transaction is in flight for a server at a time.
	mu          sync.Mutex
	serverLocks map[int64]*sync.Mutex
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:          db,
		serverLocks: make(map[int64]*sync.Mutex),
	}
}

// DB exposes the underlying connection for the read-only API handlers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListServers returns all registered servers.
func (s *gormStore) ListServers(ctx context.Context) ([]model.Server, error) {
	var servers []model.Server
	if err := s.db.WithContext(ctx).Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// RecordPopulation appends one population sample for a server.
func (s *gormStore) RecordPopulation(ctx context.Context, serverID int64, online int, now time.Time) error {
	record := model.PopulationRecord{
		ServerID:  serverID,
		Online:    online,
		Timestamp: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record population for server %d: %w", serverID, err)
	}
	return nil
}

// ReconcileSessions brings the session state for one server in line with
// the snapshot's player list, inside a single transaction:
//
//  1. open sessions whose player is no longer present are closed;
//  2. present players without a surviving open session get a new one;
//  3. every present player is credited one tracking interval of playtime.
//
// Close runs before open so a continuously-present player keeps their
// existing session and never transiently has zero open sessions.
func (s *gormStore) ReconcileSessions(ctx context.Context, server model.Server, names []string, now time.Time, intervalMinutes int) error {
	lock := s.serverLock(server.ID)
	lock.Lock()
	defer lock.Unlock()

	// Duplicate nicknames within one snapshot collapse to one presence;
	// snapshot order is preserved for the open pass.
	present := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, name := range names {
		if _, seen := present[name]; seen {
			continue
		}
		present[name] = struct{}{}
		ordered = append(ordered, name)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var openSessions []model.PlayerSession
		if err := tx.Preload("Player").
			Where("server_id = ? AND leave_time IS NULL", server.ID).
			Find(&openSessions).Error; err != nil {
			return fmt.Errorf("failed to fetch open sessions for server %d: %w", server.ID, err)
		}

		// Close pass: scan all open sessions for the server.
		stillOpen := make(map[string]bool, len(openSessions))
		for i := range openSessions {
			nickname := openSessions[i].Player.Nickname
			if _, ok := present[nickname]; ok {
				stillOpen[nickname] = true
				continue
			}
			if err := tx.Model(&model.PlayerSession{}).
				Where("id = ?", openSessions[i].ID).
				Update("leave_time", now).Error; err != nil {
				return fmt.Errorf("failed to close session %d: %w", openSessions[i].ID, err)
			}
		}

		// Open pass: create sessions for present players that have no open
		// session left after the close pass.
		for _, nickname := range ordered {
			player, _, err := findOrCreatePlayer(tx, server.Address, nickname, 0)
			if err != nil {
				return err
			}
			if stillOpen[nickname] {
				continue
			}
			session := model.PlayerSession{
				PlayerID: player.ID,
				ServerID: server.ID,
				JoinTime: now,
			}
			if err := tx.Create(&session).Error; err != nil {
				return fmt.Errorf("failed to open session for %s on server %d: %w", nickname, server.ID, err)
			}
		}

		// Playtime pass: one interval per present nickname per cycle. A
		// player first seen this cycle was created above with zero playtime
		// and is credited here, so they net exactly one interval.
		for _, nickname := range ordered {
			player, created, err := findOrCreatePlayer(tx, server.Address, nickname, intervalMinutes)
			if err != nil {
				return err
			}
			if created {
				continue
			}
			if err := tx.Model(&model.Player{}).
				Where("id = ?", player.ID).
				Update("play_time", gorm.Expr("play_time + ?", intervalMinutes)).Error; err != nil {
				return fmt.Errorf("failed to update playtime for %s: %w", nickname, err)
			}
		}

		return nil
	})
}

// findOrCreatePlayer looks up the player keyed by (nickname, address),
// creating it with the given initial playtime when missing. Runs inside
// the caller's transaction.
func findOrCreatePlayer(tx *gorm.DB, address, nickname string, initialPlayTime int) (model.Player, bool, error) {
	var player model.Player
	err := tx.Where("address = ? AND nickname = ?", address, nickname).First(&player).Error
	if err == nil {
		return player, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Player{}, false, fmt.Errorf("failed to look up player %s@%s: %w", nickname, address, err)
	}

	player = model.Player{
		Address:  address,
		Nickname: nickname,
		PlayTime: initialPlayTime,
	}
	if err := tx.Create(&player).Error; err != nil {
		return model.Player{}, false, fmt.Errorf("failed to create player %s@%s: %w", nickname, address, err)
	}
	return player, true, nil
}

func (s *gormStore) serverLock(serverID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.serverLocks[serverID]
	if !ok {
		lock = &sync.Mutex{}
		s.serverLocks[serverID] = lock
	}
	return lock
}
