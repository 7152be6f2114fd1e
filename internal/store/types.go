package store

// Snapshot is one point-in-time observation of a server, as reported by
// the status API. A nil *Snapshot means "no snapshot available" for the
// cycle, regardless of the underlying cause.
type Snapshot struct {
	Online      bool
	PlayerCount int
	MaxPlayers  int
	Players     []string
	Version     string
	MOTD        string
	Core        string
}
