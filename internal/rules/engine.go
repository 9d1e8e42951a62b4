// Package rules evaluates user-defined automation rules against messages.
//
// Evaluation is pure and deterministic. Callers pass rules already in
// precedence order (see SortRules); the engine never reorders them.
package rules

import (
	"sort"
	"strings"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

// Evaluate returns the first active rule whose conditions match msg, or nil.
func Evaluate(msg *models.Message, rules []models.Rule) *models.Rule {
	for i := range rules {
		if !rules[i].IsActive {
			continue
		}
		if MatchGroup(msg, rules[i].Conditions) {
			return &rules[i]
		}
	}
	return nil
}

// EvaluateAll returns every active rule matching msg, preserving input order.
func EvaluateAll(msg *models.Message, rules []models.Rule) []models.Rule {
	var out []models.Rule
	for _, r := range rules {
		if r.IsActive && MatchGroup(msg, r.Conditions) {
			out = append(out, r)
		}
	}
	return out
}

// SortRules orders rules by priority ascending, then creation time, then id.
func SortRules(rules []models.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// MatchGroup evaluates a condition group. An empty group never matches.
func MatchGroup(msg *models.Message, g models.ConditionGroup) bool {
	if len(g.Conditions) == 0 {
		return false
	}

	if g.Operator == models.LogicalOr {
		for _, n := range g.Conditions {
			if matchNode(msg, n) {
				return true
			}
		}
		return false
	}

	for _, n := range g.Conditions {
		if !matchNode(msg, n) {
			return false
		}
	}
	return true
}

func matchNode(msg *models.Message, n models.ConditionNode) bool {
	switch {
	case n.Group != nil:
		return MatchGroup(msg, *n.Group)
	case n.Condition != nil:
		return MatchCondition(msg, *n.Condition)
	default:
		return false
	}
}

// MatchCondition applies a single comparison. All comparisons ignore case.
func MatchCondition(msg *models.Message, c models.Condition) bool {
	field, ok := fieldValue(msg, c.Field)
	if !ok {
		return false
	}
	field = strings.ToLower(field)
	value := strings.ToLower(c.Value)

	switch c.Operator {
	case models.OpContains:
		return strings.Contains(field, value)
	case models.OpNotContains:
		return !strings.Contains(field, value)
	case models.OpEquals:
		return field == value
	case models.OpNotEquals:
		return field != value
	case models.OpStartsWith:
		return strings.HasPrefix(field, value)
	case models.OpEndsWith:
		return strings.HasSuffix(field, value)
	default:
		return false
	}
}

func fieldValue(msg *models.Message, f models.ConditionField) (string, bool) {
	switch f {
	case models.FieldFromEmail:
		return msg.SenderEmail, true
	case models.FieldFromName:
		return msg.SenderName, true
	case models.FieldSubject:
		return msg.Subject, true
	case models.FieldBodyText:
		return msg.BodyText, true
	default:
		return "", false
	}
}
