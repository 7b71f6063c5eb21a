package storage

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when an insert collides with a unique index.
	ErrDuplicate = errors.New("duplicate document")
	// ErrConflict is returned when a compare-and-swap update matched no
	// document because the guarded field changed underneath the caller.
	ErrConflict = errors.New("concurrent modification conflict")
)

// User is the account document. Email is unique (case-sensitive exact
// match) and RefreshToken holds at most one active value; login, refresh
// and revoke are the only writers of that field.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	RefreshToken string             `bson:"refresh_token,omitempty" json:"-"`
}

// Member links a user into an organization with an access level
// ("admin" for the creator, "member" for invitees).
type Member struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Email       string             `bson:"email" json:"email"`
	AccessLevel string             `bson:"access_level" json:"access_level"`
}

// Organization is the tenant document.
type Organization struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Members     []Member           `bson:"members" json:"members"`
}

// HasMember reports whether the user already belongs to the organization.
func (o *Organization) HasMember(userID primitive.ObjectID) bool {
	for _, m := range o.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
