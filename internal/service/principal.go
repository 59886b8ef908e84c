package service

import (
	"context"

	"github.com/campusolx/backend/internal/model"
)

// Principal is the authenticated caller. The zero value is anonymous.
type Principal struct {
	UserID     string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	University string `json:"university"`
	Verified   bool   `json:"verified"`
	Moderator  bool   `json:"admin"`
}

func (p Principal) Anonymous() bool {
	return p.UserID == ""
}

type Capability string

const CapabilityModerator Capability = "moderator"

// Authorize is a pure capability check on the principal.
func Authorize(p Principal, c Capability) bool {
	if p.Anonymous() {
		return false
	}
	switch c {
	case CapabilityModerator:
		return p.Moderator
	}
	return false
}

func principalFromUser(u *model.User) Principal {
	return Principal{
		UserID:     u.ID,
		Email:      u.Email,
		Name:       u.Name,
		University: u.University,
		Verified:   u.Verified,
		Moderator:  u.Moderator,
	}
}

// PrincipalResolver maps a verified token subject to a principal without
// touching the user store. ok=false defers to the store.
type PrincipalResolver interface {
	Resolve(ctx context.Context, subject string) (Principal, bool)
}

type FixturePrincipals map[string]Principal

func (f FixturePrincipals) Resolve(_ context.Context, subject string) (Principal, bool) {
	p, ok := f[subject]
	return p, ok
}

// DemoPrincipals is installed only when demo mode is switched on.
func DemoPrincipals() FixturePrincipals {
	return FixturePrincipals{
		"demo-user": {
			UserID:     "demo-user",
			Email:      "demo@university.edu",
			Name:       "Demo User",
			University: "Demo University",
			Verified:   true,
		},
		"demo-admin": {
			UserID:     "demo-admin",
			Email:      "admin@campusolx.com",
			Name:       "Demo Admin",
			University: "Demo University",
			Verified:   true,
			Moderator:  true,
		},
	}
}
