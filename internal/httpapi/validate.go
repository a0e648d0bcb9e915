package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const (
	minPage            = 1
	minPageSize        = 1
	maxPageSize        = 100
	maxKeyAliasLength  = 256
	defaultModelsPage  = 1
	defaultModelsLimit = 100
	isoDateLayout      = "2006-01-02"
)

// pagination is an optional page/pageSize query pair. Zero means unset.
type pagination struct {
	Page     int
	PageSize int
}

func parsePagination(q url.Values) (pagination, error) {
	var p pagination
	var err error
	if p.Page, err = optionalInt(q, "page", minPage, 0); err != nil {
		return p, err
	}
	if p.PageSize, err = optionalInt(q, "pageSize", minPageSize, maxPageSize); err != nil {
		return p, err
	}
	return p, nil
}

// optionalInt parses q[name] as an integer within [lo, hi]. hi of zero means
// no upper bound. An absent value is 0.
func optionalInt(q url.Values, name string, lo, hi int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.BadRequest(fmt.Sprintf("%s must be an integer", name))
	}
	if n < lo {
		return 0, utils.BadRequest(fmt.Sprintf("%s must be at least %d", name, lo))
	}
	if hi > 0 && n > hi {
		return 0, utils.BadRequest(fmt.Sprintf("%s must be at most %d", name, hi))
	}
	return n, nil
}

// isoDate validates an optional YYYY-MM-DD value.
func isoDate(name, value string, required bool) error {
	if value == "" {
		if required {
			return utils.BadRequest(fmt.Sprintf("Missing %s", name))
		}
		return nil
	}
	if _, err := time.Parse(isoDateLayout, value); err != nil {
		return utils.BadRequest(fmt.Sprintf("%s must be an ISO date (YYYY-MM-DD)", name))
	}
	return nil
}

func validateKeyAlias(alias *string) error {
	if alias != nil && len([]rune(*alias)) > maxKeyAliasLength {
		return utils.BadRequest(fmt.Sprintf("keyAlias must be at most %d characters", maxKeyAliasLength))
	}
	return nil
}

func validateModelName(name string) error {
	if !models.ModelNamePattern.MatchString(name) {
		return utils.BadRequest("Invalid model name")
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return utils.BadRequest(fmt.Sprintf("Missing %s", name))
	}
	return nil
}

func validURL(name, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return utils.BadRequest(fmt.Sprintf("%s must be a URL", name))
	}
	return nil
}
