package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/session"
)

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	StatusDraft     ListingStatus = "draft"
	StatusPublished ListingStatus = ListingStatus(permission.StatusPublished)
	StatusSold      ListingStatus = "sold"
	StatusArchived  ListingStatus = "archived"
)

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusSold, StatusArchived:
		return true
	default:
		return false
	}
}

// User is an account able to sign in.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string       `bun:"id,pk"`
	Email        string       `bun:"email,notnull,unique"`
	Name         string       `bun:"name,notnull"`
	PasswordHash string       `bun:"password_hash,notnull"`
	Role         session.Role `bun:"role,notnull"`
	CreatedAt    time.Time    `bun:"created_at,notnull"`
}

// Agent is a public directory profile owned by a user account.
type Agent struct {
	bun.BaseModel `bun:"table:agents,alias:a"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull,unique"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Phone     string    `bun:"phone,notnull"`
	Agency    string    `bun:"agency,notnull"`
	Bio       string    `bun:"bio,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Fields exposes the attributes permission filters inspect.
func (a *Agent) Fields() map[string]any {
	return map[string]any{
		permission.FieldOwner: a.UserID,
	}
}

// Listing is a property advertised for sale or rent.
type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID          string          `bun:"id,pk"`
	Title       string          `bun:"title,notnull"`
	Description string          `bun:"description,notnull"`
	Address     string          `bun:"address,notnull"`
	City        string          `bun:"city,notnull"`
	Price       decimal.Decimal `bun:"price,type:text,notnull"`
	Bedrooms    int             `bun:"bedrooms,notnull,default:0"`
	Bathrooms   int             `bun:"bathrooms,notnull,default:0"`
	AreaSqm     int             `bun:"area_sqm,notnull,default:0"`
	Status      ListingStatus   `bun:"status,notnull"`
	OwnerID     string          `bun:"owner_id,notnull"`
	AgentID     string          `bun:"agent_id,nullzero"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

// Fields exposes the attributes permission filters inspect.
func (l *Listing) Fields() map[string]any {
	return map[string]any{
		permission.FieldOwner:  l.OwnerID,
		permission.FieldStatus: string(l.Status),
	}
}

// Validate checks a listing before it is written.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return invalid("title is required")
	}
	if len(l.Title) > 200 {
		return invalid("title exceeds 200 characters")
	}
	if strings.TrimSpace(l.Address) == "" {
		return invalid("address is required")
	}
	if strings.TrimSpace(l.City) == "" {
		return invalid("city is required")
	}
	if l.Price.IsNegative() {
		return invalid("price cannot be negative")
	}
	if l.Bedrooms < 0 || l.Bathrooms < 0 || l.AreaSqm < 0 {
		return invalid("room counts and area cannot be negative")
	}
	if !l.Status.Valid() {
		return invalid("unknown listing status")
	}
	if l.OwnerID == "" {
		return invalid("owner is required")
	}
	return nil
}
