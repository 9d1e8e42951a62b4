// Package guardrails decides whether a generated reply is safe to send
// without human review. Evaluation is pure: it never touches the network or
// the database and never returns an error. Any violation fails the check.
package guardrails

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
)

// DefaultConfidenceThreshold is the minimum model confidence accepted when
// settings do not override it.
const DefaultConfidenceThreshold = 0.7

// ViolationType classifies a guardrail violation
type ViolationType string

const (
	ViolationRecipient      ViolationType = "new_recipient"
	ViolationProfanity      ViolationType = "profanity"
	ViolationCreditCard     ViolationType = "pii_credit_card"
	ViolationSSN            ViolationType = "pii_ssn"
	ViolationPassword       ViolationType = "pii_password"
	ViolationCommitment     ViolationType = "commitment_word"
	ViolationCustomKeyword  ViolationType = "custom_keyword"
	ViolationLowConfidence  ViolationType = "low_confidence"
	ViolationEmptyRecipient ViolationType = "no_recipient"
)

// Violation is one reason a candidate reply was rejected. Matched holds the
// offending text with sensitive parts masked.
type Violation struct {
	Type    ViolationType `json:"type"`
	Message string        `json:"message"`
	Matched string        `json:"matched,omitempty"`
}

// Input is the candidate reply and the context needed to judge it
type Input struct {
	Text               string
	Recipients         []string
	OriginalSender     string
	ThreadParticipants []string
	Confidence         float64
	// Unscored marks a reply whose confidence the model never reported. It
	// fails the confidence check whatever the threshold.
	Unscored bool
}

// Config selects which checks run. The recipient and confidence checks
// always run. Empty lexicons fall back to the built-in defaults.
type Config struct {
	CheckProfanity      bool
	CheckPII            bool
	CheckCommitment     bool
	CheckCustomKeywords bool
	BlockedKeywords     []string
	ConfidenceThreshold float64
	ProfanityTerms      []string
	CommitmentPhrases   []string
}

// DefaultConfig enables every check with the default threshold
func DefaultConfig() Config {
	return Config{
		CheckProfanity:      true,
		CheckPII:            true,
		CheckCommitment:     true,
		CheckCustomKeywords: true,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Result is the outcome of Check
type Result struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
}

// ShouldDowngrade reports whether an auto-send must become a pending draft
func (r Result) ShouldDowngrade() bool {
	return !r.Passed
}

// Types returns the distinct violation types in order of first appearance
func (r Result) Types() []ViolationType {
	seen := make(map[ViolationType]bool, len(r.Violations))
	out := make([]ViolationType, 0, len(r.Violations))
	for _, v := range r.Violations {
		if !seen[v.Type] {
			seen[v.Type] = true
			out = append(out, v.Type)
		}
	}
	return out
}

var (
	creditCardPattern        = regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`)
	creditCardGroupedPattern = regexp.MustCompile(`\b(?:\d{4}[-\s]){3}\d{4}\b`)
	ssnPattern               = regexp.MustCompile(`\b(\d{3})[-\s]?(\d{2})[-\s]?(\d{4})\b`)
	passwordPattern          = regexp.MustCompile(`(?i)\b(password|pwd|secret|api[_-]?key|access[_-]?token)\s*[:=]\s*\S+`)

	defaultProfanityPattern  = compileLexicon(DefaultProfanityTerms)
	defaultCommitmentPattern = compileLexicon(DefaultCommitmentPhrases)
)

// Check evaluates the candidate against every enabled rule and enumerates all
// violations found.
func Check(in Input, cfg Config) Result {
	var violations []Violation

	violations = append(violations, checkRecipients(in)...)

	if cfg.CheckProfanity {
		pattern := defaultProfanityPattern
		if len(cfg.ProfanityTerms) > 0 {
			pattern = compileLexicon(cfg.ProfanityTerms)
		}
		for _, m := range findAll(pattern, in.Text) {
			violations = append(violations, Violation{
				Type:    ViolationProfanity,
				Message: "reply contains profanity",
				Matched: maskWord(m),
			})
		}
	}

	if cfg.CheckPII {
		violations = append(violations, checkPII(in.Text)...)
	}

	if cfg.CheckCommitment {
		pattern := defaultCommitmentPattern
		if len(cfg.CommitmentPhrases) > 0 {
			pattern = compileLexicon(cfg.CommitmentPhrases)
		}
		for _, m := range findAll(pattern, in.Text) {
			violations = append(violations, Violation{
				Type:    ViolationCommitment,
				Message: "reply makes a commitment on the owner's behalf",
				Matched: m,
			})
		}
	}

	if cfg.CheckCustomKeywords && len(cfg.BlockedKeywords) > 0 {
		for _, m := range findKeywords(cfg.BlockedKeywords, in.Text) {
			violations = append(violations, Violation{
				Type:    ViolationCustomKeyword,
				Message: "reply contains a blocked keyword",
				Matched: maskWord(m),
			})
		}
	}

	if in.Unscored {
		violations = append(violations, Violation{
			Type:    ViolationLowConfidence,
			Message: "model did not report a confidence score",
		})
	} else if in.Confidence < cfg.ConfidenceThreshold {
		violations = append(violations, Violation{
			Type:    ViolationLowConfidence,
			Message: fmt.Sprintf("confidence %.2f is below threshold %.2f", in.Confidence, cfg.ConfidenceThreshold),
		})
	}

	return Result{
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}

func checkRecipients(in Input) []Violation {
	if len(in.Recipients) == 0 {
		return []Violation{{
			Type:    ViolationEmptyRecipient,
			Message: "reply has no recipients",
		}}
	}

	known := make(map[string]bool, len(in.ThreadParticipants)+1)
	if addr := NormalizeAddress(in.OriginalSender); addr != "" {
		known[addr] = true
	}
	for _, p := range in.ThreadParticipants {
		if addr := NormalizeAddress(p); addr != "" {
			known[addr] = true
		}
	}

	var out []Violation
	for _, r := range in.Recipients {
		addr := NormalizeAddress(r)
		if addr == "" || !known[addr] {
			out = append(out, Violation{
				Type:    ViolationRecipient,
				Message: "recipient is not part of the original conversation",
				Matched: r,
			})
		}
	}
	return out
}

func checkPII(text string) []Violation {
	var out []Violation

	cards := make(map[string]bool)
	for _, m := range append(creditCardPattern.FindAllString(text, -1), creditCardGroupedPattern.FindAllString(text, -1)...) {
		digits := onlyDigits(m)
		if cards[digits] || !luhnValid(digits) {
			continue
		}
		cards[digits] = true
		out = append(out, Violation{
			Type:    ViolationCreditCard,
			Message: "reply contains a credit card number",
			Matched: maskCard(digits),
		})
	}

	for _, sm := range ssnPattern.FindAllStringSubmatch(text, -1) {
		if !plausibleSSN(sm[1], sm[2], sm[3]) {
			continue
		}
		out = append(out, Violation{
			Type:    ViolationSSN,
			Message: "reply contains a social security number",
			Matched: "***-**-" + sm[3],
		})
	}

	for range passwordPattern.FindAllString(text, -1) {
		out = append(out, Violation{
			Type:    ViolationPassword,
			Message: "reply contains a credential",
			Matched: "[REDACTED]",
		})
	}

	return out
}

// NormalizeAddress extracts the bare lower-cased address from either a plain
// address or a "Name <addr>" form. Unparseable input returns "".
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if a, err := mail.ParseAddress(s); err == nil {
		return strings.ToLower(a.Address)
	}
	if strings.Count(s, "@") == 1 && !strings.ContainsAny(s, " <>") {
		return strings.ToLower(s)
	}
	return ""
}

func compileLexicon(terms []string) *regexp.Regexp {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		words := strings.Fields(t)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

// findKeywords returns the text of every case-insensitive substring hit.
// Unlike the lexicons, keywords match inside words and may contain symbols.
func findKeywords(keywords []string, text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(lower[from:], kw)
			if i < 0 {
				break
			}
			start := from + i
			out = append(out, matchedSpan(text, lower, start, len(kw)))
			from = start + len(kw)
		}
	}
	return out
}

// matchedSpan returns the original-case text of a hit found in lower. The
// slice falls back to the lowered text when lowering changed byte lengths.
func matchedSpan(text, lower string, start, n int) string {
	if len(text) == len(lower) {
		return text[start : start+n]
	}
	return lower[start : start+n]
}

func findAll(pattern *regexp.Regexp, text string) []string {
	if pattern == nil || text == "" {
		return nil
	}
	return pattern.FindAllString(text, -1)
}

func plausibleSSN(area, group, serial string) bool {
	a, _ := strconv.Atoi(area)
	if a == 0 || a == 666 || a >= 900 {
		return false
	}
	return group != "00" && serial != "0000"
}

func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func maskCard(digits string) string {
	return "****-****-****-" + digits[len(digits)-4:]
}

func maskWord(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}
