package rules

import (
	"fmt"
	"strings"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/validator"
)

// MaxGroupDepth bounds condition nesting
const MaxGroupDepth = 5

// Validate checks a rule definition and returns every problem found as a
// *errors.ValidationError, or nil.
func Validate(r *models.Rule) error {
	ve := &apperrors.ValidationError{}

	if strings.TrimSpace(r.Name) == "" {
		ve.Add("name", "is required")
	}
	if !r.Action.Valid() {
		ve.Add("action", fmt.Sprintf("unknown action %q", r.Action))
	}
	if r.Priority < 0 {
		ve.Add("priority", "must not be negative")
	}

	validateGroup(ve, "conditions", r.Conditions, 1)

	if r.Action == models.ActionForward {
		if len(r.ActionConfig.ForwardTo) == 0 {
			ve.Add("action_config.forward_to", "is required for forward rules")
		}
		for i, addr := range r.ActionConfig.ForwardTo {
			if err := validator.ValidateEmail(addr); err != nil {
				ve.Add(fmt.Sprintf("action_config.forward_to[%d]", i), err.Error())
			}
		}
	}

	return ve.OrNil()
}

func validateGroup(ve *apperrors.ValidationError, path string, g models.ConditionGroup, depth int) {
	if depth > MaxGroupDepth {
		ve.Add(path, fmt.Sprintf("nesting deeper than %d levels", MaxGroupDepth))
		return
	}
	if g.Operator != models.LogicalAnd && g.Operator != models.LogicalOr {
		ve.Add(path+".operator", fmt.Sprintf("must be AND or OR, got %q", g.Operator))
	}
	if len(g.Conditions) == 0 {
		ve.Add(path+".conditions", "must contain at least one condition")
	}

	for i, n := range g.Conditions {
		p := fmt.Sprintf("%s.conditions[%d]", path, i)
		switch {
		case n.Group != nil && n.Condition != nil:
			ve.Add(p, "must be either a condition or a group")
		case n.Group != nil:
			validateGroup(ve, p, *n.Group, depth+1)
		case n.Condition != nil:
			validateCondition(ve, p, *n.Condition)
		default:
			ve.Add(p, "is empty")
		}
	}
}

func validateCondition(ve *apperrors.ValidationError, path string, c models.Condition) {
	switch c.Field {
	case models.FieldFromEmail, models.FieldFromName, models.FieldSubject, models.FieldBodyText:
	default:
		ve.Add(path+".field", fmt.Sprintf("unknown field %q", c.Field))
	}

	switch c.Operator {
	case models.OpContains, models.OpNotContains, models.OpEquals,
		models.OpNotEquals, models.OpStartsWith, models.OpEndsWith:
	default:
		ve.Add(path+".operator", fmt.Sprintf("unknown operator %q", c.Operator))
	}
}
