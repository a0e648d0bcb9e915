package models

// Identity is a user as known to the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// User is the LiteLLM proxy user keyed by the identity id.
type User struct {
	UserID    string   `json:"userId"`
	UserEmail *string  `json:"userEmail"`
	MaxBudget *float64 `json:"maxBudget"` // nil means unlimited
	Spend     float64  `json:"spend"`
}
