package handlers

import (
	"database/sql"
	"net/http"

	"github.com/recipe-box/app/internal/database"
)

type userPayload struct {
	Name     *string `json:"name" validate:"omitnil,max=255"`
	Password *string `json:"password" validate:"omitnil,min=5,max=128"`
}

// GetMe returns the authenticated user.
func GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	WriteJSON(w, r, http.StatusOK, serializeUser(user))
}

// UpdateMe changes the authenticated user's name and/or password.
func UpdateMe(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var payload userPayload
		if err := decodeJSON(w, r, &payload, true); err != nil {
			WriteError(w, r, err)
			return
		}

		var password string
		if payload.Password != nil {
			password = *payload.Password
		}
		updated, err := database.UpdateUser(r.Context(), db, user.ID, payload.Name, password)
		if err != nil {
			WriteError(w, r, storeError(err, "update user"))
			return
		}
		WriteJSON(w, r, http.StatusOK, serializeUser(updated))
	}
}
