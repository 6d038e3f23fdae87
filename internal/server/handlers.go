package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	estateAuth "github.com/MrEthical07/estateAuth"
	estatemw "github.com/MrEthical07/estateAuth/middleware"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

type handlers struct {
	engine *estateAuth.Engine
	logger *zap.Logger
}

func currentSession(r *http.Request) *session.Session {
	s, _ := estatemw.SessionFromContext(r.Context())
	return s
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

/*
====================================
AUTH
====================================
*/

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.Register(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.SetSessionCookie(w, res.Session); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: newUserResponse(res.User), SessionID: res.Session.SessionID})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.SetSessionCookie(w, res.Session); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: newUserResponse(res.User), SessionID: res.Session.SessionID})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.engine.Logout(r.Context(), w, currentSession(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.Me(r.Context(), currentSession(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

/*
====================================
LISTINGS
====================================
*/

func listingQuery(r *http.Request) (store.ListingQuery, error) {
	q := r.URL.Query()
	out := store.ListingQuery{
		City:    q.Get("city"),
		Status:  store.ListingStatus(q.Get("status")),
		AgentID: q.Get("agent_id"),
	}
	var err error
	if out.MinBedrooms, err = intParam(q.Get("min_bedrooms")); err != nil {
		return out, err
	}
	if out.Limit, err = intParam(q.Get("limit")); err != nil {
		return out, err
	}
	if out.Offset, err = intParam(q.Get("offset")); err != nil {
		return out, err
	}
	return out, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, estateAuth.ErrInvalidInput
	}
	return n, nil
}

func (h *handlers) listListings(w http.ResponseWriter, r *http.Request) {
	q, err := listingQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	listings, err := h.engine.ListListings(r.Context(), currentSession(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListingsResponse(listings))
}

func (h *handlers) browseListings(w http.ResponseWriter, r *http.Request) {
	q, err := listingQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	listings, err := h.engine.BrowseListings(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListingsResponse(listings))
}

func (h *handlers) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.GetListing(r.Context(), currentSession(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListingResponse(l))
}

func (h *handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.engine.CreateListing(r.Context(), currentSession(r), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newListingResponse(l))
}

func (h *handlers) updateListing(w http.ResponseWriter, r *http.Request) {
	var req listingPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.engine.UpdateListing(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListingResponse(l))
}

func (h *handlers) deleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteListing(r.Context(), currentSession(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setListingStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.engine.SetListingStatus(r.Context(), currentSession(r), chi.URLParam(r, "id"), store.ListingStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/*
====================================
AGENTS
====================================
*/

func (h *handlers) listAgents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	offset, err := intParam(r.URL.Query().Get("offset"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	agents, err := h.engine.ListAgents(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, newAgentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAgentResponse(a))
}

func (h *handlers) updateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.engine.UpdateAgent(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAgentResponse(a))
}

func (h *handlers) invalidateAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.InvalidateAgent(r.Context(), currentSession(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) purgeAgents(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.InvalidateAgent(r.Context(), currentSession(r), ""); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
