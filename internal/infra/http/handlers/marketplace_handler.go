package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/infra/http/middleware"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/usecase"
)

type Marketplace interface {
	Browse(ctx context.Context, input usecase.BrowseListingsInput) (*usecase.BrowseListingsOutput, error)
	GetListing(ctx context.Context, leadID string) (*usecase.ListingView, error)
	ListPurchases(ctx context.Context, buyerID string) ([]*entity.Purchase, error)
}

type Purchaser interface {
	Execute(ctx context.Context, input usecase.PurchaseLeadInput) (*usecase.PurchaseLeadOutput, error)
}

type PurchaseCompleter interface {
	Execute(ctx context.Context, input usecase.CompletePurchaseInput) (*usecase.CompletePurchaseOutput, error)
}

type MarketplaceHandler struct {
	Market   Marketplace
	Purchase Purchaser
	Complete PurchaseCompleter
	Logger   logger.Logger
}

func NewMarketplaceHandler(market Marketplace, purchase Purchaser, complete PurchaseCompleter, log logger.Logger) *MarketplaceHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &MarketplaceHandler{
		Market:   market,
		Purchase: purchase,
		Complete: complete,
		Logger:   log,
	}
}

// Browse (GET /marketplace/listings)
func (h *MarketplaceHandler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := usecase.BrowseListingsInput{
		Industry:      strings.TrimSpace(q.Get("industry")),
		Location:      strings.TrimSpace(q.Get("location")),
		PriceCategory: entity.PriceCategory(q.Get("category")),
	}

	var bad []string
	intParam := func(name string, dst *int) {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				bad = append(bad, name)
				return
			}
			*dst = v
		}
	}
	intParam("limit", &input.Limit)
	intParam("offset", &input.Offset)
	intParam("minScore", &input.MinScore)
	if raw := q.Get("maxPrice"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			bad = append(bad, "maxPrice")
		}
		input.MaxPrice = v
	}
	if len(bad) > 0 {
		writeErrorResponse(w, http.StatusBadRequest, usecase.CodeValidation,
			"invalid query parameter: "+strings.Join(bad, ", "))
		return
	}

	out, err := h.Market.Browse(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetListing (GET /marketplace/listings/{leadId})
func (h *MarketplaceHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	view, err := h.Market.GetListing(r.Context(), chi.URLParam(r, "leadId"))
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CreatePurchase (POST /marketplace/purchases)
func (h *MarketplaceHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var input usecase.PurchaseLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.BuyerID = middleware.BuyerID(r.Context())

	out, err := h.Purchase.Execute(r.Context(), input)
	middleware.RecordPurchase("initiate", resultLabel(err))
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// CompletePurchase (POST /marketplace/purchases/{purchaseId}/complete)
func (h *MarketplaceHandler) CompletePurchase(w http.ResponseWriter, r *http.Request) {
	input := usecase.CompletePurchaseInput{
		PurchaseID: chi.URLParam(r, "purchaseId"),
		BuyerID:    middleware.BuyerID(r.Context()),
	}

	out, err := h.Complete.Execute(r.Context(), input)
	middleware.RecordPurchase("complete", resultLabel(err))
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListPurchases (GET /marketplace/purchases)
func (h *MarketplaceHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.Market.ListPurchases(r.Context(), middleware.BuyerID(r.Context()))
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(usecase.ErrorCode(err))
}
