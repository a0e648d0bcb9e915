package models

// Signature proves a chat completion came from a specific replica.
type Signature struct {
	Text           string      `json:"text" db:"text"`
	Signature      string      `json:"signature" db:"signature"`
	SigningAddress string      `json:"signing_address" db:"signing_address"`
	SigningAlgo    SigningAlgo `json:"signing_algo" db:"signing_algo"`
}

// SignatureRecord is a persisted signature keyed by (ModelID, ChatID, SigningAlgo).
type SignatureRecord struct {
	ModelID string `json:"model_id" db:"model_id"`
	ChatID  string `json:"chat_id" db:"chat_id"`
	Model   string `json:"model" db:"model"`
	Signature
}
