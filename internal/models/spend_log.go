package models

// SpendLog is one billed request recorded by LiteLLM.
type SpendLog struct {
	RequestID        string  `json:"requestId"`
	UserID           string  `json:"userId"`
	KeyHash          string  `json:"keyHash"`
	Status           string  `json:"status"`
	CallType         string  `json:"callType"`
	Spend            float64 `json:"spend"`
	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	TotalTokens      int64   `json:"totalTokens"`
	ModelID          string  `json:"modelId"`
	Model            string  `json:"model"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
}
