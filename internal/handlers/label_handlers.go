package handlers

import (
	"database/sql"
	"net/http"

	"github.com/recipe-box/app/internal/auth"
	"github.com/recipe-box/app/internal/database"
	apierrors "github.com/recipe-box/app/internal/errors"
	"github.com/recipe-box/app/internal/filters"
	"github.com/recipe-box/app/internal/models"
)

type labelPayload struct {
	Name *string `json:"name" validate:"omitnil,min=1,max=255"`
}

// ListLabels lists the caller's tags or ingredients. With ?assigned_only=1
// only those used by at least one recipe are returned.
func ListLabels(db *sql.DB, kind models.LabelKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		raw, err := queryParam(r, "assigned_only")
		if err != nil {
			WriteError(w, r, err)
			return
		}
		assignedOnly, err := filters.ParseFlag(raw)
		if err != nil {
			WriteError(w, r, invalidFilter("assigned_only", err))
			return
		}

		labels, err := database.ListLabels(r.Context(), db, kind, user.ID, assignedOnly)
		if err != nil {
			WriteError(w, r, storeError(err, "list "+kind.String()))
			return
		}
		WriteJSON(w, r, http.StatusOK, serializeLabels(labels))
	}
}

// UpdateLabel renames one of the caller's tags or ingredients. PUT requires
// a name; PATCH without one leaves the label as it is.
func UpdateLabel(db *sql.DB, kind models.LabelKind, partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			WriteError(w, r, err)
			return
		}

		// Ownership is checked before the body so a foreign id reads as missing.
		label, err := database.GetLabel(r.Context(), db, kind, user.ID, id)
		if err != nil {
			WriteError(w, r, storeError(err, "load "+string(kind)))
			return
		}

		var payload labelPayload
		if err := decodeJSON(w, r, &payload, partial); err != nil {
			WriteError(w, r, err)
			return
		}
		if payload.Name == nil {
			if !partial {
				WriteError(w, r, invalidFields(map[string]string{"name": "required"}))
				return
			}
			WriteJSON(w, r, http.StatusOK, serializeLabel(label))
			return
		}

		label, err = database.RenameLabel(r.Context(), db, kind, user.ID, id, *payload.Name)
		if err != nil {
			WriteError(w, r, storeError(err, "update "+string(kind)))
			return
		}
		WriteJSON(w, r, http.StatusOK, serializeLabel(label))
	}
}

// DeleteLabel removes one of the caller's tags or ingredients.
func DeleteLabel(db *sql.DB, kind models.LabelKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			WriteError(w, r, err)
			return
		}

		if err := database.DeleteLabel(r.Context(), db, kind, user.ID, id); err != nil {
			WriteError(w, r, storeError(err, "delete "+string(kind)))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		Unauthorized(w, r, "Authentication credentials were not provided.")
		return nil, false
	}
	return user, true
}

func invalidFilter(param string, err error) error {
	return apierrors.NewWithContext(apierrors.ErrCodeInvalidRequest, "Invalid filter parameter.",
		map[string]any{"param": param, "error": err.Error()})
}
