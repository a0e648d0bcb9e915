package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the inner object of the error envelope.
type ErrorBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
	Stack   string  `json:"stack,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// RespondWithError writes err as an error envelope. Outside development a 500
// never reveals its message and no response carries a stack.
func RespondWithError(w http.ResponseWriter, err error, isDev bool) *HTTPError {
	httpErr := AsHTTPError(err)

	body := ErrorBody{
		Message: httpErr.Message,
		Type:    httpErr.Type,
		Param:   httpErr.Param,
		Code:    httpErr.Code,
	}
	if isDev {
		if httpErr.Status >= http.StatusInternalServerError && httpErr.Cause != nil {
			body.Message = httpErr.Error()
		}
		body.Stack = httpErr.Stack()
	} else if httpErr.Status >= http.StatusInternalServerError {
		body.Message = http.StatusText(http.StatusInternalServerError)
	}

	RespondWithJSON(w, httpErr.Status, ErrorResponse{Error: body})
	return httpErr
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		return err
	}
	return nil
}
