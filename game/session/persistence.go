package session

import (
	"time"

	"github.com/cardduel/server/game/engine"
)

// persistedSession is the on-disk document for one session
type persistedSession struct {
	Version int                `json:"version"`
	SavedAt time.Time          `json:"saved_at"`
	Game    *engine.GameRecord `json:"game"`
}

const persistedVersion = 1
