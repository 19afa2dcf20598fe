package handlers

import (
	"database/sql"
	"net/http"

	"github.com/recipe-box/app/internal/database"
	"github.com/recipe-box/app/internal/filters"
	"github.com/recipe-box/app/internal/models"
	"github.com/shopspring/decimal"
)

var maxPrice = decimal.NewFromInt(1000)

type namePayload struct {
	Name string `json:"name" validate:"required,max=255"`
}

// recipePayload is the body of create, PUT and PATCH requests. Pointer
// fields distinguish "absent" from zero values for PATCH.
type recipePayload struct {
	Title       *string          `json:"title" validate:"omitnil,min=1,max=255"`
	Description *string          `json:"description"`
	TimeMinutes *int             `json:"time_minutes" validate:"omitnil,gte=0"`
	Price       *decimal.Decimal `json:"price"`
	Link        *string          `json:"link" validate:"omitnil,max=255"`
	Tags        []namePayload    `json:"tags" validate:"omitempty,dive"`
	Ingredients []namePayload    `json:"ingredients" validate:"omitempty,dive"`
}

// check applies the rules the struct tags cannot express. full requires
// every writable scalar field, as for create and PUT.
func (p *recipePayload) check(full bool) error {
	fields := map[string]string{}
	if full {
		if p.Title == nil {
			fields["title"] = "required"
		}
		if p.TimeMinutes == nil {
			fields["time_minutes"] = "required"
		}
		if p.Price == nil {
			fields["price"] = "required"
		}
	}
	if p.Price != nil && !validPrice(*p.Price) {
		fields["price"] = "decimal"
	}
	// An empty link clears it; anything else must be a URL.
	if p.Link != nil && *p.Link != "" && validate.Var(*p.Link, "url") != nil {
		fields["link"] = "url"
	}
	if len(fields) > 0 {
		return invalidFields(fields)
	}
	return nil
}

// validPrice accepts non-negative amounts of at most five digits with two
// decimal places.
func validPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThan(maxPrice) && d.Equal(d.Truncate(2))
}

func (p *recipePayload) changes() database.RecipeChanges {
	return database.RecipeChanges{
		Title:           p.Title,
		Description:     p.Description,
		TimeMinutes:     p.TimeMinutes,
		Price:           p.Price,
		Link:            p.Link,
		TagNames:        names(p.Tags),
		IngredientNames: names(p.Ingredients),
	}
}

// names keeps nil as nil so an absent list leaves the relation untouched.
func names(items []namePayload) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

// ListRecipes lists the caller's recipes, optionally narrowed with
// ?tags=1,2 and ?ingredients=3,4.
func ListRecipes(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		tagIDs, err := idFilter(r, "tags")
		if err != nil {
			WriteError(w, r, err)
			return
		}
		ingredientIDs, err := idFilter(r, "ingredients")
		if err != nil {
			WriteError(w, r, err)
			return
		}

		recipes, err := database.ListRecipes(r.Context(), db, user.ID, database.RecipeFilter{
			TagIDs:        tagIDs,
			IngredientIDs: ingredientIDs,
		})
		if err != nil {
			WriteError(w, r, storeError(err, "list recipes"))
			return
		}

		out := make([]recipeResponse, len(recipes))
		for i, recipe := range recipes {
			out[i] = serializeRecipe(recipe)
		}
		WriteJSON(w, r, http.StatusOK, out)
	}
}

func idFilter(r *http.Request, name string) ([]int64, error) {
	raw, err := queryParam(r, name)
	if err != nil {
		return nil, err
	}
	ids, err := filters.ParseIDs(raw)
	if err != nil {
		return nil, invalidFilter(name, err)
	}
	return ids, nil
}

// GetRecipe returns one of the caller's recipes in detail form.
func GetRecipe(db *sql.DB) http.HandlerFunc {
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

		recipe, err := database.GetRecipe(r.Context(), db, user.ID, id)
		if err != nil {
			WriteError(w, r, storeError(err, "load recipe"))
			return
		}
		WriteJSON(w, r, http.StatusOK, serializeRecipeDetail(recipe))
	}
}

// CreateRecipe creates a recipe for the caller. Nested tags and ingredients
// are matched by name against the caller's own and created when missing.
func CreateRecipe(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var payload recipePayload
		if err := decodeJSON(w, r, &payload, false); err != nil {
			WriteError(w, r, err)
			return
		}
		if err := payload.check(true); err != nil {
			WriteError(w, r, err)
			return
		}

		recipe := &models.Recipe{
			UserID:      user.ID,
			Title:       *payload.Title,
			TimeMinutes: *payload.TimeMinutes,
			Price:       *payload.Price,
		}
		if payload.Description != nil {
			recipe.Description = *payload.Description
		}
		if payload.Link != nil {
			recipe.Link = *payload.Link
		}

		created, err := database.CreateRecipe(r.Context(), db, recipe, names(payload.Tags), names(payload.Ingredients))
		if err != nil {
			WriteError(w, r, storeError(err, "create recipe"))
			return
		}
		WriteJSON(w, r, http.StatusCreated, serializeRecipeDetail(created))
	}
}

// UpdateRecipe handles PUT (partial=false) and PATCH (partial=true). A tags
// or ingredients list in the body replaces the current one.
func UpdateRecipe(db *sql.DB, partial bool) http.HandlerFunc {
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
		if _, err := database.GetRecipe(r.Context(), db, user.ID, id); err != nil {
			WriteError(w, r, storeError(err, "load recipe"))
			return
		}

		var payload recipePayload
		if err := decodeJSON(w, r, &payload, partial); err != nil {
			WriteError(w, r, err)
			return
		}
		if err := payload.check(!partial); err != nil {
			WriteError(w, r, err)
			return
		}

		updated, err := database.UpdateRecipe(r.Context(), db, user.ID, id, payload.changes())
		if err != nil {
			WriteError(w, r, storeError(err, "update recipe"))
			return
		}
		WriteJSON(w, r, http.StatusOK, serializeRecipeDetail(updated))
	}
}

// DeleteRecipe removes one of the caller's recipes.
func DeleteRecipe(db *sql.DB) http.HandlerFunc {
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

		if err := database.DeleteRecipe(r.Context(), db, user.ID, id); err != nil {
			WriteError(w, r, storeError(err, "delete recipe"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
