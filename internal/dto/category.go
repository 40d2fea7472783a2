package dto

// RuleRequest is one classification rule in a category payload.
type RuleRequest struct {
	Kind    string `json:"kind" validate:"required"`
	Pattern string `json:"pattern" validate:"required"`
}

// CreateCategoryRequest describes a category create payload.
type CreateCategoryRequest struct {
	Name     string        `json:"name" validate:"required"`
	Color    string        `json:"color" validate:"required,hexcolor"`
	Priority int           `json:"priority"`
	ParentID *string       `json:"parent_id"`
	Rules    []RuleRequest `json:"rules" validate:"dive"`
}

// UpdateCategoryRequest describes a category update payload.
type UpdateCategoryRequest struct {
	Name     string        `json:"name" validate:"required"`
	Color    string        `json:"color" validate:"required,hexcolor"`
	Priority int           `json:"priority"`
	ParentID *string       `json:"parent_id"`
	Rules    []RuleRequest `json:"rules" validate:"dive"`
}
