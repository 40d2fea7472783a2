package dto

// CategoryDuration is one row of the per-category duration rollup.
// Events without a category report under the virtual uncategorized
// bucket.
type CategoryDuration struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	Minutes    int    `json:"minutes"`
}
