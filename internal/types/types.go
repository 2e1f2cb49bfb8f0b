package types

import (
	"time"
)

// Plan is the subscription tier attached to a user account. It controls
// the rate limits applied to the user's API traffic.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanTier2 Plan = "tier2"
	PlanTier3 Plan = "tier3"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanTier2, PlanTier3:
		return true
	}
	return false
}

// AccessLevel is the level of access a collaborator has on a document.
type AccessLevel string

const (
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

func (a AccessLevel) Valid() bool {
	return a == AccessRead || a == AccessWrite
}

type User struct {
	Id        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Plan      Plan      `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Collaborator struct {
	UserId string      `json:"user_id"`
	Access AccessLevel `json:"access"`
}

type Document struct {
	Id            string         `json:"id"`
	OwnerId       string         `json:"owner_id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Collaborators []Collaborator `json:"collaborators"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// CanWrite reports whether identity may mutate the document. The owner is
// implicitly write-capable and never appears in the collaborator list.
func (d *Document) CanWrite(identity string) bool {
	if identity == d.OwnerId {
		return true
	}

	for _, c := range d.Collaborators {
		if c.UserId == identity {
			return c.Access == AccessWrite
		}
	}

	return false
}

// CanRead reports whether identity may view the document.
func (d *Document) CanRead(identity string) bool {
	if identity == d.OwnerId {
		return true
	}

	for _, c := range d.Collaborators {
		if c.UserId == identity {
			return true
		}
	}

	return false
}
