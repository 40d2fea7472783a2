package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UncategorizedID is the sentinel id for the virtual bucket holding
// events without a category. It is never persisted.
const UncategorizedID = "_uncategorized"

// RuleKind enumerates classification rule matchers.
type RuleKind string

const (
	RuleStartsWith RuleKind = "STARTS_WITH"
	RuleEndsWith   RuleKind = "ENDS_WITH"
	RuleContains   RuleKind = "CONTAINS"
	RuleEquals     RuleKind = "EQUALS"
	RuleRegex      RuleKind = "REGEX"
)

// Valid reports whether the kind is one of the known matchers.
func (k RuleKind) Valid() bool {
	switch k {
	case RuleStartsWith, RuleEndsWith, RuleContains, RuleEquals, RuleRegex:
		return true
	default:
		return false
	}
}

// ClassificationRule matches event titles for a category.
type ClassificationRule struct {
	Kind    RuleKind `json:"kind"`
	Pattern string   `json:"pattern"`
}

// RuleList is a JSONB-backed ordered rule collection.
type RuleList []ClassificationRule

// Value implements driver.Valuer for the rules column.
func (l RuleList) Value() (driver.Value, error) {
	if l == nil {
		l = RuleList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for the rules column.
func (l *RuleList) Scan(src interface{}) error {
	if src == nil {
		*l = RuleList{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported rules column type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Category groups events and owns the rules that auto-assign them.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	Priority  int       `db:"priority" json:"priority"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	Rules     RuleList  `db:"rules" json:"rules"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CategoryNode is one node of the arena-built category tree.
type CategoryNode struct {
	Category Category        `json:"category"`
	Children []*CategoryNode `json:"children"`
}

// ClassificationStats summarises one batch classification run.
type ClassificationStats struct {
	Considered    int            `json:"considered"`
	Categorized   int            `json:"categorized"`
	Uncategorized int            `json:"uncategorized"`
	PerCategory   map[string]int `json:"per_category"`
}

// CategoryMinutes is one row of the per-category duration rollup.
type CategoryMinutes struct {
	CategoryID *string `db:"category_id" json:"category_id,omitempty"`
	Minutes    int     `db:"minutes" json:"minutes"`
}
