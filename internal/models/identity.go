package models

import "github.com/google/uuid"

// Identity is the authenticated caller as supplied by the auth collaborator
type Identity struct {
	UserID  uuid.UUID
	Name    string
	Phone   string
	Email   string
	IsAdmin bool
}

// Actor returns the state machine actor this identity acts as
func (i Identity) Actor() Actor {
	if i.IsAdmin {
		return ActorAdmin
	}
	return ActorUser
}

// Label is the changed_by value recorded in the status log
func (i Identity) Label() string {
	return string(i.Actor()) + ":" + i.UserID.String()
}
