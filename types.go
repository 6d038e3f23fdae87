package estateAuth

import (
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

// RegisterInput is a self-service account registration. Role may be user or agent; empty
// means user. Agent registrations also create a directory profile from Phone and Agency.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     session.Role
	Phone    string
	Agency   string
}

func (in *RegisterInput) normalize() {
	in.Email = store.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Agency = strings.TrimSpace(in.Agency)
	if in.Role == "" {
		in.Role = session.RoleUser
	}
}

func (in RegisterInput) validate() error {
	if _, err := mail.ParseAddress(in.Email); err != nil || !strings.Contains(in.Email, "@") {
		return invalidInput("email is not a valid address")
	}
	if in.Name == "" {
		return invalidInput("name is required")
	}
	if len(in.Name) > 120 {
		return invalidInput("name exceeds 120 characters")
	}
	if !in.Role.Valid() {
		return invalidInput("unknown role")
	}
	return nil
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User    *store.User
	Session *session.Session
}

// ListingInput carries the fields of a new listing. OwnerID is honoured only for roles that
// act on every record; everyone else owns what they create.
type ListingInput struct {
	Title       string
	Description string
	Address     string
	City        string
	Price       decimal.Decimal
	Bedrooms    int
	Bathrooms   int
	AreaSqm     int
	Status      store.ListingStatus
	AgentID     string
	OwnerID     string
}

// ListingPatch is a partial update. Nil fields are left unchanged.
type ListingPatch struct {
	Title       *string
	Description *string
	Address     *string
	City        *string
	Price       *decimal.Decimal
	Bedrooms    *int
	Bathrooms   *int
	AreaSqm     *int
	Status      *store.ListingStatus
	AgentID     *string
}

func (p ListingPatch) apply(l *store.Listing) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Address != nil {
		l.Address = *p.Address
	}
	if p.City != nil {
		l.City = *p.City
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Bedrooms != nil {
		l.Bedrooms = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		l.Bathrooms = *p.Bathrooms
	}
	if p.AreaSqm != nil {
		l.AreaSqm = *p.AreaSqm
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.AgentID != nil {
		l.AgentID = *p.AgentID
	}
}

// AgentPatch is a partial update of a directory profile.
type AgentPatch struct {
	Name   *string
	Email  *string
	Phone  *string
	Agency *string
	Bio    *string
}

func (p AgentPatch) apply(a *store.Agent) {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		a.Email = store.NormalizeEmail(*p.Email)
	}
	if p.Phone != nil {
		a.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Agency != nil {
		a.Agency = strings.TrimSpace(*p.Agency)
	}
	if p.Bio != nil {
		a.Bio = *p.Bio
	}
}
