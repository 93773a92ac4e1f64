package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/usecase"
)

type LeadManager interface {
	Get(ctx context.Context, id string) (*entity.Lead, error)
	Rescore(ctx context.Context, id string) (*entity.Lead, error)
	UpdateStatus(ctx context.Context, id string, status entity.LeadStatus) (*entity.Lead, error)
	Delete(ctx context.Context, id string) error
}

type ListingCreator interface {
	Execute(ctx context.Context, input usecase.CreateListingInput) (*entity.Listing, error)
}

type WebhookRegistrar interface {
	Execute(ctx context.Context, input usecase.RegisterWebhookInput) (*usecase.RegisterWebhookOutput, error)
}

// AdminHandler serves the routes mounted behind middleware.AdminOnly.
type AdminHandler struct {
	Leads    LeadManager
	Listings ListingCreator
	Webhooks WebhookRegistrar
	Logger   logger.Logger
}

func NewAdminHandler(leads LeadManager, listings ListingCreator, webhooks WebhookRegistrar, log logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &AdminHandler{
		Leads:    leads,
		Listings: listings,
		Webhooks: webhooks,
		Logger:   log,
	}
}

func (h *AdminHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.Leads.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *AdminHandler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status entity.LeadStatus `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	lead, err := h.Leads.UpdateStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *AdminHandler) RescoreLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.Leads.Rescore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *AdminHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := h.Leads.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateListingInput
	if !decodeJSON(w, r, &input) {
		return
	}

	listing, err := h.Listings.Execute(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *AdminHandler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var input usecase.RegisterWebhookInput
	if !decodeJSON(w, r, &input) {
		return
	}

	out, err := h.Webhooks.Execute(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
