package services

import (
	"github.com/qforge/qbank/models"
)

// RoutePolicy is the role-based navigation contract: which paths are reachable
// without a session, where the login page lives, and where each role lands
// after sign-in.
type RoutePolicy struct {
	Public      []string
	Login       string
	AdminHome   string
	TrainerHome string
	StudentHome string
}

// RouteDecision is the outcome of evaluating a snapshot against a path.
type RouteDecision struct {
	Redirect bool   `json:"redirect"`
	Target   string `json:"target,omitempty"`
}

func (p RoutePolicy) IsPublic(path string) bool {
	for _, pub := range p.Public {
		if path == pub {
			return true
		}
	}
	return false
}

// HomeFor maps a role to its landing path. Unknown roles land on the student
// home, the least privileged destination.
func (p RoutePolicy) HomeFor(role string) string {
	switch role {
	case models.RoleAdmin:
		return p.AdminHome
	case models.RoleTrainer:
		return p.TrainerHome
	default:
		return p.StudentHome
	}
}

// Evaluate decides whether a caller at path should be redirected given the
// session snapshot. While the snapshot is loading no decision is made; the
// caller stays put until the session settles.
func (p RoutePolicy) Evaluate(snap SessionSnapshot, path string) RouteDecision {
	if snap.Loading {
		return RouteDecision{}
	}

	if snap.User == nil {
		if p.IsPublic(path) {
			return RouteDecision{}
		}
		return RouteDecision{Redirect: true, Target: p.Login}
	}

	// Authenticated without a profile: the session is usable but the role is
	// unknown, so no role-home redirect fires.
	if snap.Profile == nil {
		return RouteDecision{}
	}

	if p.IsPublic(path) || path == "/" {
		home := p.HomeFor(snap.Profile.Role)
		if path == home {
			return RouteDecision{}
		}
		return RouteDecision{Redirect: true, Target: home}
	}
	return RouteDecision{}
}
