package domain

import "time"

type Account struct {
	ID             string
	Balance        Amount
	InitialBalance Amount
	Version        int // optimistic locking
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Role string

const (
	RoleClient  Role = "client"
	RoleAdvisor Role = "advisor"
	RoleAdmin   Role = "admin"
)

// Identity is the verified caller handed to the core by the identity collaborator.
type Identity struct {
	AccountID string
	Role      Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
