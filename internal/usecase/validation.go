package usecase

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/medjobs/leadmarket/internal/entity"
)

const (
	maxNameLength    = 200
	maxCompanyLength = 200
	maxMessageLength = 5000
	maxSourceLength  = 50
)

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	sourceRe   = regexp.MustCompile(`^[a-z0-9_\-]+$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// joinValidation folds field errors into one VALIDATION_ERROR, or nil.
func joinValidation(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+" ("+e.Message+")")
	}
	return validationError("validation failed: " + strings.Join(parts, ", "))
}

func ValidateSubmitLeadInput(input SubmitLeadInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.Email) == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		errors = append(errors, ValidationError{"source", "is required"})
	} else if len(source) > maxSourceLength || !sourceRe.MatchString(source) {
		errors = append(errors, ValidationError{"source", "must be a lowercase identifier"})
	}

	if utf8.RuneCountInString(input.Name) > maxNameLength {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}
	if utf8.RuneCountInString(input.Company) > maxCompanyLength {
		errors = append(errors, ValidationError{"company", "must not exceed 200 characters"})
	}
	if utf8.RuneCountInString(input.Message) > maxMessageLength {
		errors = append(errors, ValidationError{"message", "must not exceed 5000 characters"})
	}
	if strings.TrimSpace(input.Phone) != "" && !isValidPhoneNumber(input.Phone) {
		errors = append(errors, ValidationError{"phone", "must be a valid phone number"})
	}

	if input.CalculationData != nil && input.CalculationData.AnnualCompensation < 0 {
		errors = append(errors, ValidationError{"calculation_data.annual_compensation", "must not be negative"})
	}
	if input.Metadata.SessionDuration < 0 {
		errors = append(errors, ValidationError{"metadata.session_duration", "must not be negative"})
	}

	return errors
}

func ValidateCreateListingInput(input CreateListingInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.LeadID) == "" {
		errors = append(errors, ValidationError{"lead_id", "is required"})
	}
	if input.Category != "" && !input.Category.Valid() {
		errors = append(errors, ValidationError{"price_category", "must be standard, premium or hot_lead"})
	}
	if input.BasePrice != nil && (*input.BasePrice < MinListingPrice || *input.BasePrice > MaxListingPrice) {
		errors = append(errors, ValidationError{"base_price", "must be between 1000 and 10000"})
	}
	if input.MaxPurchases != 0 && (input.MaxPurchases < 1 || input.MaxPurchases > maxListingPurchases) {
		errors = append(errors, ValidationError{"max_purchases", "must be between 1 and 50"})
	}
	if input.TTLDays != 0 && (input.TTLDays < 1 || input.TTLDays > maxListingTTLDays) {
		errors = append(errors, ValidationError{"ttl_days", "must be between 1 and 90"})
	}

	return errors
}

func ValidateBrowseInput(input BrowseListingsInput) []ValidationError {
	var errors []ValidationError

	if input.Limit < 0 || input.Limit > maxBrowseLimit {
		errors = append(errors, ValidationError{"limit", "must be between 1 and 100"})
	}
	if input.Offset < 0 {
		errors = append(errors, ValidationError{"offset", "must not be negative"})
	}
	if input.PriceCategory != "" && !input.PriceCategory.Valid() {
		errors = append(errors, ValidationError{"price_category", "must be standard, premium or hot_lead"})
	}
	if input.MinScore < 0 || input.MinScore > 100 {
		errors = append(errors, ValidationError{"min_score", "must be between 0 and 100"})
	}
	if input.MaxPrice < 0 {
		errors = append(errors, ValidationError{"max_price", "must not be negative"})
	}

	return errors
}

func ValidateWebhookInput(input RegisterWebhookInput) []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(strings.TrimSpace(input.URL))
	if input.URL == "" {
		errors = append(errors, ValidationError{"url", "is required"})
	} else if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		errors = append(errors, ValidationError{"url", "must be an absolute http(s) URL"})
	}

	for _, ev := range input.Events {
		if !isKnownEvent(ev) {
			errors = append(errors, ValidationError{"events", "unknown event " + ev})
		}
	}

	return errors
}

// validID reports whether id can name a stored record. Lead, listing and
// purchase ids are UUIDs; anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isValidPhoneNumber(phone string) bool {
	cleaned := nonDigitRe.ReplaceAllString(phone, "")
	return len(cleaned) >= 7 && len(cleaned) <= 15
}

func isKnownEvent(event string) bool {
	for _, known := range entity.KnownEvents {
		if known == event {
			return true
		}
	}
	return false
}
