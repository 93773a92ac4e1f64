// Package spam screens lead submissions with content and email-shape heuristics.
package spam

import (
	"regexp"
	"strings"
)

const (
	ReasonBlockedKeyword     = "blocked_keyword"
	ReasonExcessiveDigits    = "excessive_digits"
	ReasonExcessiveCaps      = "excessive_caps"
	ReasonRepeatedCharacters = "repeated_characters"
	ReasonSuspiciousEmail    = "suspicious_email"
	ReasonSuspiciousDomain   = "suspicious_domain"
	ReasonSuspiciousTLD      = "suspicious_tld"

	repeatedRunLimit = 6
)

var blockedKeywords = []string{
	"viagra",
	"cialis",
	"casino",
	"lottery",
	"bitcoin",
	"crypto investment",
	"forex",
	"payday loan",
	"free money",
	"click here",
	"seo services",
	"backlinks",
	"buy followers",
	"porn",
	"make money fast",
}

var lowReputationTLDs = map[string]bool{
	"xyz":   true,
	"top":   true,
	"click": true,
	"loan":  true,
	"work":  true,
	"buzz":  true,
	"gq":    true,
	"tk":    true,
	"ml":    true,
	"cf":    true,
	"ga":    true,
}

var (
	excessiveDigitsRe = regexp.MustCompile(`\d{12,}`)
	consecutiveCapsRe = regexp.MustCompile(`[A-Z]{10,}`)
	leadingDigitsRe   = regexp.MustCompile(`^\d{4,}`)
	numericDomainRe   = regexp.MustCompile(`^[\d.-]+$`)
)

type Submission struct {
	Email   string
	Name    string
	Company string
	Message string
}

type Result struct {
	IsSpam bool   `json:"is_spam"`
	Reason string `json:"reason,omitempty"`
}

// Classifier is stateless; Classify is a pure function of the submission.
type Classifier struct {
	keywords []string
}

func NewClassifier() *Classifier {
	return &Classifier{keywords: blockedKeywords}
}

func (c *Classifier) Classify(s Submission) Result {
	if reason := c.checkText(s.Message, s.Name, s.Company); reason != "" {
		return Result{IsSpam: true, Reason: reason}
	}
	if reason := checkEmail(s.Email); reason != "" {
		return Result{IsSpam: true, Reason: reason}
	}
	return Result{}
}

func (c *Classifier) checkText(message string, others ...string) string {
	lower := strings.ToLower(message + " " + strings.Join(others, " "))
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return ReasonBlockedKeyword
		}
	}
	if excessiveDigitsRe.MatchString(message) {
		return ReasonExcessiveDigits
	}
	if consecutiveCapsRe.MatchString(message) {
		return ReasonExcessiveCaps
	}
	if hasRepeatedRun(message, repeatedRunLimit) {
		return ReasonRepeatedCharacters
	}
	return ""
}

func checkEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	local := email[:at]
	domain := strings.ToLower(email[at+1:])

	if leadingDigitsRe.MatchString(local) {
		return ReasonSuspiciousEmail
	}

	dot := strings.LastIndex(domain, ".")
	if dot <= 0 {
		return ""
	}
	if numericDomainRe.MatchString(domain[:dot]) {
		return ReasonSuspiciousDomain
	}
	if lowReputationTLDs[domain[dot+1:]] {
		return ReasonSuspiciousTLD
	}
	return ""
}

// hasRepeatedRun reports whether any rune repeats at least n times in a row.
// Whitespace runs are ignored.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev && r != ' ' && r != '\n' && r != '\t' {
			run++
			if run >= n {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
