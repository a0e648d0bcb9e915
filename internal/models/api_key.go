package models

// ServiceAccountMetadataKey marks a key as belonging to a service account.
const ServiceAccountMetadataKey = "service_account_id"

// Key is a LiteLLM virtual key as returned by /key/info and /key/list.
// KeyHash is the only identifier this server hands out; the raw secret is
// returned once by /key/generate and never stored.
type Key struct {
	KeyHash        string         `json:"keyHash"`
	KeyName        string         `json:"keyName"`
	KeyAlias       *string        `json:"keyAlias"`
	Spend          float64        `json:"spend"`
	Expires        *string        `json:"expires"`
	Models         []string       `json:"models"`
	UserID         *string        `json:"userId"`
	TeamID         *string        `json:"teamId"`
	RPMLimit       *int64         `json:"rpmLimit"`
	TPMLimit       *int64         `json:"tpmLimit"`
	BudgetID       *string        `json:"budgetId"`
	MaxBudget      *float64       `json:"maxBudget"`
	BudgetDuration *string        `json:"budgetDuration"`
	BudgetResetAt  *string        `json:"budgetResetAt"`
	Blocked        *bool          `json:"blocked"`
	CreatedAt      string         `json:"createdAt"`
	Metadata       map[string]any `json:"metadata"`
}

// ServiceAccountID returns metadata.service_account_id, or "" when unset.
func (k *Key) ServiceAccountID() string {
	id, _ := k.Metadata[ServiceAccountMetadataKey].(string)
	return id
}

// IsServiceAccount reports whether the key is a service account key. A
// service account key must never have a personal owner.
func (k *Key) IsServiceAccount() bool {
	return k.ServiceAccountID() != "" && k.UserID == nil
}

func (k *Key) IsBlocked() bool {
	return k.Blocked != nil && *k.Blocked
}

// OwnedBy reports whether userID owns the key.
func (k *Key) OwnedBy(userID string) bool {
	return k.UserID != nil && *k.UserID == userID
}

// GeneratedKey is the one-time response of key generation.
type GeneratedKey struct {
	Key     string  `json:"key"`
	Expires *string `json:"expires"`
}
