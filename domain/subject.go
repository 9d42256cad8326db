package domain

import "context"

// Subject is a data owner or follower identity. It is owned by the external
// identity subsystem; this module only reads it.
type Subject struct {
	ID    string `bson:"_id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Roles []string `bson:"roles,omitempty" json:"roles,omitempty"`
}

// SubjectReader is the read-only view onto the identity subsystem.
type SubjectReader interface {
	GetSubjectByID(ctx context.Context, id string) (*Subject, error)
}
