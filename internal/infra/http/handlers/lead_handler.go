package handlers

import (
	"context"
	"net/http"

	"github.com/medjobs/leadmarket/internal/infra/http/middleware"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/usecase"
)

type LeadSubmitter interface {
	Execute(ctx context.Context, input usecase.SubmitLeadInput) (*usecase.SubmitLeadOutput, error)
}

type LeadHandler struct {
	SubmitLead LeadSubmitter
	ClientIP   *ClientIP
	Logger     logger.Logger
}

func NewLeadHandler(uc LeadSubmitter, clientIP *ClientIP, log logger.Logger) *LeadHandler {
	if clientIP == nil {
		clientIP = NewClientIP(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LeadHandler{SubmitLead: uc, ClientIP: clientIP, Logger: log}
}

// CaptureLead (POST /leads). Rate-limited and spam submissions get the same
// 200 as accepted ones; only the metrics tell them apart.
func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var input usecase.SubmitLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}

	clientIP := h.ClientIP.Resolve(r)
	input.Identity = clientIP
	input.Metadata.IPAddress = clientIP
	if input.Metadata.UserAgent == "" {
		input.Metadata.UserAgent = r.UserAgent()
	}

	out, err := h.SubmitLead.Execute(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, r, h.Logger, err)
		return
	}

	middleware.RecordLeadIntake(string(out.Outcome))
	writeJSON(w, http.StatusOK, out)
}
