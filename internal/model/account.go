package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

type AccountStatus string

const (
	StatusActive   AccountStatus = "ACTIVE"
	StatusPending  AccountStatus = "PENDING"
	StatusDisabled AccountStatus = "DISABLED"
)

// Visibility is the minimum role required to view a resource.
// Ordering: PUBLIC < STUDENT < TEACHER < ADMIN.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityStudent
	VisibilityTeacher
	VisibilityAdmin
)

func ParseVisibility(s string) (Visibility, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PUBLIC":
		return VisibilityPublic, true
	case "STUDENT":
		return VisibilityStudent, true
	case "TEACHER":
		return VisibilityTeacher, true
	case "ADMIN":
		return VisibilityAdmin, true
	}
	return 0, false
}

func (v Visibility) String() string {
	switch v {
	case VisibilityStudent:
		return "STUDENT"
	case VisibilityTeacher:
		return "TEACHER"
	case VisibilityAdmin:
		return "ADMIN"
	default:
		return "PUBLIC"
	}
}

func roleRank(r Role) Visibility {
	switch r {
	case RoleAdmin:
		return VisibilityAdmin
	case RoleTeacher:
		return VisibilityTeacher
	case RoleStudent:
		return VisibilityStudent
	}
	return VisibilityPublic
}

type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Roles        []Role
	Status       AccountStatus
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Profile carries the optional registration attributes.
type Profile struct {
	FirstName  string
	LastName   string
	Phone      string
	School     string
	GradeLevel string
	BirthDate  string
}

type RefreshToken struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	TokenHash  string
	FamilyID   uuid.UUID
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
}

// Principal is the resolved identity of an authenticated caller,
// threaded through the request as a value.
type Principal struct {
	AccountID uuid.UUID
	Email     string
	Roles     []Role
	FamilyID  uuid.UUID
}

func (p Principal) HasAnyRole(required ...Role) bool {
	for _, r := range p.Roles {
		for _, want := range required {
			if r == want {
				return true
			}
		}
	}
	return false
}

// HighestRank reports the caller's strongest role on the visibility scale.
func (p Principal) HighestRank() Visibility {
	highest := VisibilityPublic
	for _, r := range p.Roles {
		if rank := roleRank(r); rank > highest {
			highest = rank
		}
	}
	return highest
}

// CanView applies the visibility ordering; ADMIN always passes.
func (p Principal) CanView(v Visibility) bool {
	return p.HighestRank() >= v
}
