package services

import (
	"testing"

	"github.com/qforge/qbank/models"
)

func testPolicy() RoutePolicy {
	return RoutePolicy{
		Public:      []string{"/login", "/signup", "/forgot-password", "/reset-password"},
		Login:       "/login",
		AdminHome:   "/admin",
		TrainerHome: "/trainer",
		StudentHome: "/student",
	}
}

func TestRoutePolicyEvaluate(t *testing.T) {
	policy := testPolicy()

	authed := func(role string) SessionSnapshot {
		return SessionSnapshot{
			User:    &Session{UserID: "u1", Email: "u1@example.com"},
			Profile: &models.Profile{ID: "u1", Role: role},
		}
	}

	tests := []struct {
		name         string
		snap         SessionSnapshot
		path         string
		wantRedirect bool
		wantTarget   string
	}{
		{
			name: "loading makes no decision",
			snap: SessionSnapshot{Loading: true},
			path: "/admin",
		},
		{
			name: "anonymous on public path stays",
			snap: SessionSnapshot{},
			path: "/login",
		},
		{
			name:         "anonymous on protected path goes to login",
			snap:         SessionSnapshot{},
			path:         "/admin",
			wantRedirect: true,
			wantTarget:   "/login",
		},
		{
			name: "authenticated without profile stays put",
			snap: SessionSnapshot{User: &Session{UserID: "u1"}},
			path: "/login",
		},
		{
			name:         "student on login page goes home",
			snap:         authed(models.RoleStudent),
			path:         "/login",
			wantRedirect: true,
			wantTarget:   "/student",
		},
		{
			name:         "admin on root goes to admin home",
			snap:         authed(models.RoleAdmin),
			path:         "/",
			wantRedirect: true,
			wantTarget:   "/admin",
		},
		{
			name:         "trainer on signup goes to trainer home",
			snap:         authed(models.RoleTrainer),
			path:         "/signup",
			wantRedirect: true,
			wantTarget:   "/trainer",
		},
		{
			name: "student already on app page stays",
			snap: authed(models.RoleStudent),
			path: "/student/exams",
		},
		{
			name:         "unknown role falls back to student home",
			snap:         authed("superuser"),
			path:         "/login",
			wantRedirect: true,
			wantTarget:   "/student",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := policy.Evaluate(tt.snap, tt.path)
			if decision.Redirect != tt.wantRedirect {
				t.Errorf("Evaluate(%q) redirect = %v, expected %v", tt.path, decision.Redirect, tt.wantRedirect)
			}
			if decision.Target != tt.wantTarget {
				t.Errorf("Evaluate(%q) target = %q, expected %q", tt.path, decision.Target, tt.wantTarget)
			}
		})
	}
}

func TestRoutePolicyNoRedirectWhenAlreadyHome(t *testing.T) {
	policy := testPolicy()
	snap := SessionSnapshot{
		User:    &Session{UserID: "u1"},
		Profile: &models.Profile{ID: "u1", Role: models.RoleAdmin},
	}

	decision := policy.Evaluate(snap, "/admin")
	if decision.Redirect {
		t.Errorf("expected no redirect when already at role home, got target %q", decision.Target)
	}
}

func TestIsPublic(t *testing.T) {
	policy := testPolicy()

	if !policy.IsPublic("/login") {
		t.Error("expected /login to be public")
	}
	if policy.IsPublic("/admin") {
		t.Error("expected /admin to be protected")
	}
	if policy.IsPublic("/login/extra") {
		t.Error("public paths must match exactly, not by prefix")
	}
}
