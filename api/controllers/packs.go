package controllers

import (
	"net/http"

	"github.com/epicerie-app/epicerie-backend/api/responses"
	"github.com/epicerie-app/epicerie-backend/api/validators"
	"github.com/epicerie-app/epicerie-backend/internal/packs"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/logger"
)

type packExpandRequest struct {
	Selections packs.Selections `json:"selections"`
}

func PackList(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		params, err := validators.PaginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, nextCursor, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"packs":       items,
			"next_cursor": nextCursor,
		})
	}
}

func PackDetail(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		packID, err := uuidParam(r, "packId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pack, err := svc.Get(r.Context(), packID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pack)
	}
}

// PackExpand previews the cart lines a pack would produce for the supplied
// slot selections without touching the shopper's cart.
func PackExpand(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
			return
		}

		packID, err := uuidParam(r, "packId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input packExpandRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		expansion, err := svc.Expand(r.Context(), packID, input.Selections)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, expansion)
	}
}
