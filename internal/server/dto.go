package server

import (
	"time"

	"github.com/shopspring/decimal"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Agency   string `json:"agency,omitempty"`
}

func (r registerRequest) input() estateAuth.RegisterInput {
	return estateAuth.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Role:     session.Role(r.Role),
		Phone:    r.Phone,
		Agency:   r.Agency,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type authResponse struct {
	User      userResponse `json:"user"`
	SessionID string       `json:"session_id"`
}

type listingRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Price       decimal.Decimal `json:"price"`
	Bedrooms    int             `json:"bedrooms"`
	Bathrooms   int             `json:"bathrooms"`
	AreaSqm     int             `json:"area_sqm"`
	Status      string          `json:"status,omitempty"`
	AgentID     string          `json:"agent_id,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
}

func (r listingRequest) input() estateAuth.ListingInput {
	return estateAuth.ListingInput{
		Title:       r.Title,
		Description: r.Description,
		Address:     r.Address,
		City:        r.City,
		Price:       r.Price,
		Bedrooms:    r.Bedrooms,
		Bathrooms:   r.Bathrooms,
		AreaSqm:     r.AreaSqm,
		Status:      store.ListingStatus(r.Status),
		AgentID:     r.AgentID,
		OwnerID:     r.OwnerID,
	}
}

type listingPatchRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Address     *string          `json:"address"`
	City        *string          `json:"city"`
	Price       *decimal.Decimal `json:"price"`
	Bedrooms    *int             `json:"bedrooms"`
	Bathrooms   *int             `json:"bathrooms"`
	AreaSqm     *int             `json:"area_sqm"`
	Status      *string          `json:"status"`
	AgentID     *string          `json:"agent_id"`
}

func (r listingPatchRequest) patch() estateAuth.ListingPatch {
	p := estateAuth.ListingPatch{
		Title:       r.Title,
		Description: r.Description,
		Address:     r.Address,
		City:        r.City,
		Price:       r.Price,
		Bedrooms:    r.Bedrooms,
		Bathrooms:   r.Bathrooms,
		AreaSqm:     r.AreaSqm,
		AgentID:     r.AgentID,
	}
	if r.Status != nil {
		status := store.ListingStatus(*r.Status)
		p.Status = &status
	}
	return p
}

type listingResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Price       decimal.Decimal `json:"price"`
	Bedrooms    int             `json:"bedrooms"`
	Bathrooms   int             `json:"bathrooms"`
	AreaSqm     int             `json:"area_sqm"`
	Status      string          `json:"status"`
	OwnerID     string          `json:"owner_id"`
	AgentID     string          `json:"agent_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newListingResponse(l *store.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Address:     l.Address,
		City:        l.City,
		Price:       l.Price,
		Bedrooms:    l.Bedrooms,
		Bathrooms:   l.Bathrooms,
		AreaSqm:     l.AreaSqm,
		Status:      string(l.Status),
		OwnerID:     l.OwnerID,
		AgentID:     l.AgentID,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func newListingsResponse(listings []*store.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, newListingResponse(l))
	}
	return out
}

type statusRequest struct {
	Status string `json:"status"`
}

type agentPatchRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Agency *string `json:"agency"`
	Bio    *string `json:"bio"`
}

func (r agentPatchRequest) patch() estateAuth.AgentPatch {
	return estateAuth.AgentPatch{
		Name:   r.Name,
		Email:  r.Email,
		Phone:  r.Phone,
		Agency: r.Agency,
		Bio:    r.Bio,
	}
}

type agentResponse struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Agency string `json:"agency,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

func newAgentResponse(a *store.Agent) agentResponse {
	return agentResponse{
		ID:     a.ID,
		UserID: a.UserID,
		Name:   a.Name,
		Email:  a.Email,
		Phone:  a.Phone,
		Agency: a.Agency,
		Bio:    a.Bio,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
