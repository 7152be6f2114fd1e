package model

import "time"

// PopulationRecord is one observed online player count for a server.
// Append-only; rows are only removed when the owning server is deleted.
type PopulationRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ServerID  int64     `gorm:"index:idx_population_server_time;not null"`
	Online    int       `gorm:"not null"`
	Timestamp time.Time `gorm:"index:idx_population_server_time;not null"`

	// Associations
	Server Server `gorm:"constraint:OnDelete:CASCADE"`
}
