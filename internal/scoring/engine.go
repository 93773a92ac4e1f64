// Package scoring computes the deterministic 0-100 quality score of a lead.
//
// The score is the sum of five independently clamped components. Scoring reads
// only the lead's stored fields, so rescoring is idempotent and always replaces
// the previous result.
package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/medjobs/leadmarket/internal/entity"
)

const (
	MaxScore = 100

	maxSource       = 25
	maxCompleteness = 25
	maxMessage      = 20
	maxCalculator   = 15
	maxEngagement   = 15

	defaultSourceWeight = 5

	namePoints    = 5
	companyPoints = 10
	phonePoints   = 10

	calculatorPoints       = 10
	highCompensationBonus  = 5
	highCompensationCutoff = 100000

	campaignPoints        = 5
	referrerPoints        = 5
	longSessionPoints     = 5
	longSessionMinSeconds = 120
)

var sourceWeights = map[string]int{
	"referral":     25,
	"demo_request": 25,
	"calculator":   22,
	"partner":      20,
	"contact_form": 18,
	"job_board":    15,
	"social":       12,
	"website":      10,
	"newsletter":   8,
}

// messageTiers are checked top-down; the first threshold met wins.
var messageTiers = []struct {
	minLength int
	points    int
}{
	{200, 20},
	{100, 15},
	{50, 10},
	{1, 5},
}

type Result struct {
	Score     int                   `json:"score"`
	Breakdown entity.ScoreBreakdown `json:"breakdown"`
}

// Engine holds no state; the zero value is ready to use.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Score(lead *entity.Lead) Result {
	b := entity.ScoreBreakdown{
		Source:       clamp(sourceScore(lead.Source), 0, maxSource),
		Completeness: clamp(completenessScore(lead), 0, maxCompleteness),
		Message:      clamp(messageScore(lead.Message), 0, maxMessage),
		Calculator:   clamp(calculatorScore(lead.CalculationData), 0, maxCalculator),
		Engagement:   clamp(engagementScore(lead.Metadata), 0, maxEngagement),
	}
	return Result{
		Score:     clamp(b.Total(), 0, MaxScore),
		Breakdown: b,
	}
}

// Apply scores the lead and overwrites its score fields in place.
func (e *Engine) Apply(lead *entity.Lead) Result {
	r := e.Score(lead)
	lead.Score = r.Score
	lead.ScoreBreakdown = r.Breakdown
	return r
}

func sourceScore(source string) int {
	if w, ok := sourceWeights[strings.ToLower(strings.TrimSpace(source))]; ok {
		return w
	}
	return defaultSourceWeight
}

func completenessScore(lead *entity.Lead) int {
	points := 0
	if strings.TrimSpace(lead.Name) != "" {
		points += namePoints
	}
	if strings.TrimSpace(lead.Company) != "" {
		points += companyPoints
	}
	if strings.TrimSpace(lead.Phone) != "" {
		points += phonePoints
	}
	return points
}

func messageScore(message string) int {
	n := utf8.RuneCountInString(strings.TrimSpace(message))
	for _, tier := range messageTiers {
		if n >= tier.minLength {
			return tier.points
		}
	}
	return 0
}

func calculatorScore(data *entity.CalculationData) int {
	if data == nil {
		return 0
	}
	points := calculatorPoints
	if data.AnnualCompensation > highCompensationCutoff {
		points += highCompensationBonus
	}
	return points
}

func engagementScore(meta entity.LeadMetadata) int {
	points := 0
	if strings.TrimSpace(meta.UTMCampaign) != "" {
		points += campaignPoints
	}
	if strings.TrimSpace(meta.Referrer) != "" {
		points += referrerPoints
	}
	if meta.SessionDuration >= longSessionMinSeconds {
		points += longSessionPoints
	}
	return points
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EngagementLevel buckets a score for marketplace display.
func EngagementLevel(score int) entity.EngagementLevel {
	switch {
	case score >= 80:
		return entity.EngagementHigh
	case score >= 50:
		return entity.EngagementMedium
	default:
		return entity.EngagementLow
	}
}
