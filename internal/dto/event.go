package dto

// SetEventCategoryRequest manually assigns or clears an event's
// category. A nil category id clears both the assignment and the
// manual flag, returning the event to the classifier's reach.
type SetEventCategoryRequest struct {
	CategoryID *string `json:"category_id"`
}
