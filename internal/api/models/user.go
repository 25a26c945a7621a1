package models

import (
	"github.com/vietnamexplorer/explorer/internal/auth"
	"github.com/vietnamexplorer/explorer/internal/user"
)

// Me is the authenticated user's account summary and profile.
type Me struct {
	User *auth.SessionUser `json:"user"`

	// Profile is null when no profile document exists.
	Profile *user.Profile `json:"profile"`
}

// Gate tells the browser which screen to show.
type Gate struct {
	Screen auth.GateScreen `json:"screen"`
}
