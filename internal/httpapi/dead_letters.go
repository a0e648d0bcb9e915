package httpapi

import (
	"errors"
	"net/http"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/queue"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const deadLetterListMax = 100

func (s *Server) listDeadLetters(w http.ResponseWriter, r *http.Request) (any, error) {
	items, err := s.deadLetters.DeadLetterItems(r.Context(), deadLetterListMax)
	if err != nil {
		return nil, utils.Internal("Failed to list dead letters", err)
	}
	if items == nil {
		items = []queue.DeadLetterItem[models.SignatureRecord]{}
	}
	return items, nil
}

type retryDeadLetterRequest struct {
	ID string `json:"id"`
}

// retryDeadLetter puts a signature that exhausted its retries back on the
// write queue.
func (s *Server) retryDeadLetter(w http.ResponseWriter, r *http.Request) (any, error) {
	var req retryDeadLetterRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := required("id", req.ID); err != nil {
		return nil, err
	}

	err := s.deadLetters.RetryDeadLetterItem(r.Context(), req.ID)
	if errors.Is(err, queue.ErrItemNotFound) {
		return nil, utils.NotFound("Dead letter not found", err)
	}
	if err != nil {
		return nil, utils.Internal("Failed to retry dead letter", err)
	}
	return nil, nil
}
