package model

// Category groups todos ("Urgent", "Non-urgent", ...). Names are unique.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DefaultCategories are seeded, in order, into an empty categories table.
var DefaultCategories = []string{"Urgent", "Non-urgent"}

// Todo is a single task owned by exactly one user.
//
// UserID always equals the User.ID of the session that created it; every read
// or write outside the admin panel checks it before acting.
type Todo struct {
	ID         int64  `json:"id"`
	Task       string `json:"task"`
	UserID     string `json:"user_id"`
	CategoryID int64  `json:"category_id"`
	Done       bool   `json:"done"`
}
