package model

import (
	"fmt"
	"time"
)

// Server represents a tracked Minecraft server. Identity is (address, port);
// the display metadata is filled in at registration time.
type Server struct {
	ID         int64  `gorm:"primaryKey"`
	Address    string `gorm:"uniqueIndex:idx_server_endpoint;size:255;not null"`
	Port       int    `gorm:"uniqueIndex:idx_server_endpoint;not null"`
	MOTD       string `gorm:"column:motd"`
	Version    string `gorm:"size:64"`
	MaxPlayers int
	OnlineMode bool
	Core       string    `gorm:"size:64;default:Unknown"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`

	// Associations
	Populations []PopulationRecord `gorm:"foreignKey:ServerID"`
	Sessions    []PlayerSession    `gorm:"foreignKey:ServerID"`
}

// Endpoint returns the "address:port" form used to address the status API.
func (s Server) Endpoint() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}
