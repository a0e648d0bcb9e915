package auth

import (
	"context"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// KeyGetter reads a key by its hash. A missing key is nil, nil.
type KeyGetter interface {
	GetKey(ctx context.Context, keyOrHash string) (*models.Key, error)
}

// OwnedKey returns the key with keyHash when userID owns it, nil when no
// such key exists, and a 403 when someone else owns it.
func OwnedKey(ctx context.Context, keys KeyGetter, userID, keyHash string) (*models.Key, error) {
	key, err := keys.GetKey(ctx, keyHash)
	if err != nil {
		return nil, utils.Internal("Failed to get key", err)
	}
	if key == nil {
		return nil, nil
	}
	if !key.OwnedBy(userID) {
		return nil, utils.Forbidden("No permission to access the key that is owned by other users")
	}
	return key, nil
}
