package store

import "github.com/jmoiron/sqlx"

// Stores bundles the per-aggregate stores that share one database handle.
type Stores struct {
	Tournaments *TournamentStore
	Players     *PlayerStore
	Matches     *MatchStore
	Boards      *BoardStore
	Shootouts   *ShootoutStore
}

func New(db *sqlx.DB) *Stores {
	return &Stores{
		Tournaments: NewTournamentStore(db),
		Players:     NewPlayerStore(db),
		Matches:     NewMatchStore(db),
		Boards:      NewBoardStore(db),
		Shootouts:   NewShootoutStore(db),
	}
}
