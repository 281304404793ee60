package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/pagination"
)

// PaginationParams reads limit/cursor query parameters for cursor-paginated
// listings. Limit normalization happens in the repositories.
func PaginationParams(r *http.Request) (pagination.Params, error) {
	params := pagination.Params{
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return params, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a non-negative integer")
	}
	params.Limit = limit
	return params, nil
}
