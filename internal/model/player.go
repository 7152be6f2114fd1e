package model

import "time"

// Player represents an observed player. Nicknames are only unique within
// the scope of one server address, so identity is (nickname, address).
// PlayTime is cumulative minutes and only ever grows while tracking runs.
type Player struct {
	ID        int64     `gorm:"primaryKey"`
	Address   string    `gorm:"uniqueIndex:idx_player_identity;size:255;not null"`
	Nickname  string    `gorm:"uniqueIndex:idx_player_identity;size:16;not null"`
	PlayTime  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
