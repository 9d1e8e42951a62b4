package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleAction is what the pipeline does when a rule matches
type RuleAction string

const (
	ActionAutoRespond RuleAction = "auto_respond"
	ActionDraftOnly   RuleAction = "draft_only"
	ActionIgnore      RuleAction = "ignore"
	ActionForward     RuleAction = "forward"
)

// Valid reports whether the action is one of the known actions
func (a RuleAction) Valid() bool {
	switch a {
	case ActionAutoRespond, ActionDraftOnly, ActionIgnore, ActionForward:
		return true
	}
	return false
}

// ConditionField names the message attribute a condition inspects
type ConditionField string

const (
	FieldFromEmail ConditionField = "from_email"
	FieldFromName  ConditionField = "from_name"
	FieldSubject   ConditionField = "subject"
	FieldBodyText  ConditionField = "body_text"
)

// ConditionOperator compares a message field against a condition value
type ConditionOperator string

const (
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpStartsWith  ConditionOperator = "starts_with"
	OpEndsWith    ConditionOperator = "ends_with"
)

// LogicalOperator joins the members of a condition group
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Condition is a single field comparison
type Condition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// ConditionGroup joins conditions and nested groups with AND or OR
type ConditionGroup struct {
	Operator   LogicalOperator `json:"operator"`
	Conditions []ConditionNode `json:"conditions"`
}

// ConditionNode is either a Condition or a nested ConditionGroup, never both.
type ConditionNode struct {
	Condition *Condition
	Group     *ConditionGroup
}

// Leaf builds a node holding a single condition
func Leaf(field ConditionField, op ConditionOperator, value string) ConditionNode {
	return ConditionNode{Condition: &Condition{Field: field, Operator: op, Value: value}}
}

// Nested builds a node holding a sub-group
func Nested(op LogicalOperator, nodes ...ConditionNode) ConditionNode {
	return ConditionNode{Group: &ConditionGroup{Operator: op, Conditions: nodes}}
}

// MarshalJSON flattens the node into either condition or group shape
func (n ConditionNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Group != nil:
		return json.Marshal(n.Group)
	case n.Condition != nil:
		return json.Marshal(n.Condition)
	default:
		return nil, fmt.Errorf("empty condition node")
	}
}

// UnmarshalJSON treats any object with a "conditions" key as a nested group
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if _, ok := fields["conditions"]; ok {
		var g ConditionGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		n.Group = &g
		n.Condition = nil
		return nil
	}
	var c Condition
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	n.Condition = &c
	n.Group = nil
	return nil
}

// RuleActionConfig carries action-specific options
type RuleActionConfig struct {
	CustomPrompt string   `json:"custom_prompt,omitempty"`
	ForwardTo    []string `json:"forward_to,omitempty"`
}

// UnmarshalJSON accepts forward_to as either a single address or a list
func (c *RuleActionConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		CustomPrompt string          `json:"custom_prompt"`
		ForwardTo    json.RawMessage `json:"forward_to"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.CustomPrompt = raw.CustomPrompt
	c.ForwardTo = nil
	if len(raw.ForwardTo) == 0 || string(raw.ForwardTo) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw.ForwardTo, &single); err == nil {
		if single != "" {
			c.ForwardTo = []string{single}
		}
		return nil
	}
	return json.Unmarshal(raw.ForwardTo, &c.ForwardTo)
}

// Rule is a user-defined automation rule
type Rule struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	OwnerID      uint             `gorm:"not null;index" json:"owner_id"`
	Name         string           `gorm:"not null;size:255" json:"name"`
	Description  string           `gorm:"size:1000" json:"description,omitempty"`
	Priority     int              `gorm:"not null;index" json:"priority"`
	IsActive     bool             `gorm:"not null" json:"is_active"`
	Conditions   ConditionGroup   `gorm:"serializer:json;type:text" json:"conditions"`
	Action       RuleAction       `gorm:"not null;size:32" json:"action"`
	ActionConfig RuleActionConfig `gorm:"serializer:json;type:text" json:"action_config"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Rule
func (Rule) TableName() string {
	return "rules"
}
