package model

import "time"

// PlayerSession is one presence interval of a player on a server.
// Invariant: at most one session per (player, server) pair may have a
// null LeaveTime at any time.
type PlayerSession struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	PlayerID  int64      `gorm:"index;not null"`
	ServerID  int64      `gorm:"index:idx_session_server_open;not null"`
	JoinTime  time.Time  `gorm:"not null"`
	LeaveTime *time.Time `gorm:"index:idx_session_server_open"`

	// Associations
	Player Player `gorm:"constraint:OnDelete:CASCADE"`
	Server Server `gorm:"constraint:OnDelete:CASCADE"`
}

// Duration returns the session length, using now for a still-open session.
func (s PlayerSession) Duration(now time.Time) time.Duration {
	if s.LeaveTime != nil {
		return s.LeaveTime.Sub(s.JoinTime)
	}
	return now.Sub(s.JoinTime)
}
