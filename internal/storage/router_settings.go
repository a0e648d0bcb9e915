package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

const routerSettingsCacheKey = "model_group_alias"

// RouterSettingsRepository reads model_group_alias from LiteLLM's router
// settings and caches the decoded map.
type RouterSettingsRepository struct {
	db    *DB
	cache *LRUCache[map[string]string]
}

// NewRouterSettingsRepository creates a repository caching aliases for ttl.
func NewRouterSettingsRepository(db *DB, ttl time.Duration) *RouterSettingsRepository {
	return &RouterSettingsRepository{
		db:    db,
		cache: NewLRUCache[map[string]string](1, ttl),
	}
}

// Cache exposes the alias cache for periodic sweeping.
func (r *RouterSettingsRepository) Cache() Sweepable {
	return r.cache
}

// GetModelAliases returns alias -> model name. Missing settings yield an
// empty map.
func (r *RouterSettingsRepository) GetModelAliases(ctx context.Context) (map[string]string, error) {
	if aliases, ok := r.cache.Get(routerSettingsCacheKey); ok {
		return aliases, nil
	}

	query := r.db.rebind(`
		SELECT param_value
		FROM "LiteLLM_Config"
		WHERE param_name = ?
	`)

	var raw models.JSONB
	err := r.db.conn.GetContext(ctx, &raw, query, "router_settings")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get router settings: %w", err)
	}

	aliases := map[string]string{}
	if err == nil {
		if aliases, err = parseModelGroupAlias(raw); err != nil {
			return nil, err
		}
	}

	r.cache.Set(routerSettingsCacheKey, aliases)
	return aliases, nil
}

// parseModelGroupAlias accepts both alias shapes LiteLLM stores: a bare
// model name, or an object carrying it under "model".
func parseModelGroupAlias(raw models.JSONB) (map[string]string, error) {
	var settings struct {
		ModelGroupAlias map[string]json.RawMessage `json:"model_group_alias"`
	}
	if err := raw.Decode(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse router settings: %w", err)
	}

	aliases := make(map[string]string, len(settings.ModelGroupAlias))
	for alias, value := range settings.ModelGroupAlias {
		var name string
		if err := json.Unmarshal(value, &name); err == nil {
			aliases[alias] = name
			continue
		}
		var obj struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal(value, &obj); err != nil || obj.Model == "" {
			return nil, fmt.Errorf("invalid alias %q in router settings", alias)
		}
		aliases[alias] = obj.Model
	}
	return aliases, nil
}

// AliasSource supplies aliases from outside the database.
type AliasSource interface {
	Aliases() map[string]string
}

// ModelAliasResolver maps a requested model name to its canonical name.
// Overlay aliases take precedence over router settings.
type ModelAliasResolver struct {
	settings *RouterSettingsRepository
	overlay  AliasSource
	logger   *slog.Logger
}

// NewModelAliasResolver creates a resolver. overlay may be nil.
func NewModelAliasResolver(settings *RouterSettingsRepository, overlay AliasSource) *ModelAliasResolver {
	return &ModelAliasResolver{
		settings: settings,
		overlay:  overlay,
		logger:   logging.For("aliases"),
	}
}

// Resolve returns the canonical name for model, or model unchanged.
func (r *ModelAliasResolver) Resolve(ctx context.Context, model string) (string, error) {
	if r.overlay != nil {
		if name, ok := r.overlay.Aliases()[model]; ok {
			r.logger.Debug("resolved alias from file", "alias", model, "model", name)
			return name, nil
		}
	}

	aliases, err := r.settings.GetModelAliases(ctx)
	if err != nil {
		return "", err
	}
	if name, ok := aliases[model]; ok {
		return name, nil
	}
	return model, nil
}
