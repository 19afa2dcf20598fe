package handlers

import (
	"database/sql"
	"net/http"

	"github.com/recipe-box/app/internal/auth"
	"github.com/recipe-box/app/internal/models"
)

// RegisterRoutes mounts the API on mux. Every /api/ route requires a bearer
// token; a known path requested with another verb answers 405.
func RegisterRoutes(mux *http.ServeMux, db *sql.DB, tokens *auth.Tokens) {
	protect := auth.Middleware(tokens, db, Unauthorized)
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, protect(h))
	}

	handle("GET /api/recipe/recipes/{$}", ListRecipes(db))
	handle("POST /api/recipe/recipes/{$}", CreateRecipe(db))
	handle("/api/recipe/recipes/{$}", MethodNotAllowed(http.MethodGet, http.MethodPost))

	handle("GET /api/recipe/recipes/{id}/{$}", GetRecipe(db))
	handle("PUT /api/recipe/recipes/{id}/{$}", UpdateRecipe(db, false))
	handle("PATCH /api/recipe/recipes/{id}/{$}", UpdateRecipe(db, true))
	handle("DELETE /api/recipe/recipes/{id}/{$}", DeleteRecipe(db))
	handle("/api/recipe/recipes/{id}/{$}",
		MethodNotAllowed(http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete))

	for _, kind := range []models.LabelKind{models.KindTag, models.KindIngredient} {
		base := "/api/recipe/" + kind.String() + "/"
		handle("GET "+base+"{$}", ListLabels(db, kind))
		handle(base+"{$}", MethodNotAllowed(http.MethodGet))

		handle("PUT "+base+"{id}/{$}", UpdateLabel(db, kind, false))
		handle("PATCH "+base+"{id}/{$}", UpdateLabel(db, kind, true))
		handle("DELETE "+base+"{id}/{$}", DeleteLabel(db, kind))
		handle(base+"{id}/{$}", MethodNotAllowed(http.MethodPut, http.MethodPatch, http.MethodDelete))
	}

	handle("GET /api/user/me/{$}", http.HandlerFunc(GetMe))
	handle("PATCH /api/user/me/{$}", UpdateMe(db))
	handle("/api/user/me/{$}", MethodNotAllowed(http.MethodGet, http.MethodPatch))

	mux.HandleFunc("/", NotFound)
}
