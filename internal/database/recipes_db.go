package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/recipe-box/app/internal/models"
	"github.com/shopspring/decimal"
)

const recipeColumns = "r.id, r.user_id, r.title, r.description, r.time_minutes, r.price, r.link, r.created_at"

// RecipeFilter narrows a recipe listing. A recipe matches when it carries at
// least one of TagIDs (if any are given) and at least one of IngredientIDs
// (if any are given).
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipeChanges describes an update. Nil fields are left as they are; a nil
// TagNames or IngredientNames keeps the current relation, a non-nil one
// (even empty) replaces it.
type RecipeChanges struct {
	Title           *string
	Description     *string
	TimeMinutes     *int
	Price           *decimal.Decimal
	Link            *string
	TagNames        []string
	IngredientNames []string
}

// CreateRecipe inserts recipe for recipe.UserID and attaches the named tags
// and ingredients, creating any of them the user does not have yet.
func CreateRecipe(ctx context.Context, db *sql.DB, recipe *models.Recipe, tagNames, ingredientNames []string) (*models.Recipe, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO recipes(user_id, title, description, time_minutes, price, link) VALUES(?, ?, ?, ?, ?, ?)",
			recipe.UserID, recipe.Title, recipe.Description, recipe.TimeMinutes, recipe.Price.StringFixed(2), recipe.Link)
		if err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		if err := setRecipeLabels(ctx, tx, models.KindTag, recipe.UserID, id, tagNames); err != nil {
			return err
		}
		return setRecipeLabels(ctx, tx, models.KindIngredient, recipe.UserID, id, ingredientNames)
	})
	if err != nil {
		return nil, err
	}
	return GetRecipe(ctx, db, recipe.UserID, id)
}

// GetRecipe retrieves a recipe with its tags and ingredients, only if it is
// owned by userID.
func GetRecipe(ctx context.Context, db *sql.DB, userID, id int64) (*models.Recipe, error) {
	scope := recipeScope{userID: userID, id: id}
	where, args := scope.where()
	row := db.QueryRowContext(ctx, "SELECT "+recipeColumns+" FROM recipes r WHERE "+where, args...)
	recipe, err := scanRecipe(row)
	if err != nil {
		return nil, notFound(err)
	}
	if err := attachLabels(ctx, db, scope, []*models.Recipe{recipe}); err != nil {
		return nil, err
	}
	return recipe, nil
}

// ListRecipes returns the recipes owned by userID, newest id first, narrowed
// by filter.
func ListRecipes(ctx context.Context, db *sql.DB, userID int64, filter RecipeFilter) ([]*models.Recipe, error) {
	scope := recipeScope{userID: userID, filter: filter}
	recipes, err := queryRecipes(ctx, db, scope)
	if err != nil {
		return nil, err
	}
	if err := attachLabels(ctx, db, scope, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// UpdateRecipe applies changes to a recipe owned by userID. A recipe owned by
// someone else is reported as ErrNotFound and left untouched.
func UpdateRecipe(ctx context.Context, db *sql.DB, userID, id int64, changes RecipeChanges) (*models.Recipe, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM recipes WHERE id = ? AND user_id = ?", id, userID).Scan(&exists)
		if err != nil {
			return notFound(err)
		}

		var sets []string
		var args []any
		if changes.Title != nil {
			sets, args = append(sets, "title = ?"), append(args, *changes.Title)
		}
		if changes.Description != nil {
			sets, args = append(sets, "description = ?"), append(args, *changes.Description)
		}
		if changes.TimeMinutes != nil {
			sets, args = append(sets, "time_minutes = ?"), append(args, *changes.TimeMinutes)
		}
		if changes.Price != nil {
			sets, args = append(sets, "price = ?"), append(args, changes.Price.StringFixed(2))
		}
		if changes.Link != nil {
			sets, args = append(sets, "link = ?"), append(args, *changes.Link)
		}
		if len(sets) > 0 {
			args = append(args, id, userID)
			query := "UPDATE recipes SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("update recipe: %w", err)
			}
		}

		if changes.TagNames != nil {
			if err := setRecipeLabels(ctx, tx, models.KindTag, userID, id, changes.TagNames); err != nil {
				return err
			}
		}
		if changes.IngredientNames != nil {
			if err := setRecipeLabels(ctx, tx, models.KindIngredient, userID, id, changes.IngredientNames); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetRecipe(ctx, db, userID, id)
}

// DeleteRecipe removes a recipe owned by userID. Its tags and ingredients stay.
func DeleteRecipe(ctx context.Context, db *sql.DB, userID, id int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM recipes WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return expectOneRow(res)
}

// recipeScope selects the recipes of one user: a single one when id is set,
// otherwise those matching filter.
type recipeScope struct {
	userID int64
	id     int64
	filter RecipeFilter
}

// where returns a condition over the recipes table aliased as r.
func (s recipeScope) where() (string, []any) {
	clause := "r.user_id = ?"
	args := []any{s.userID}
	if s.id != 0 {
		clause += " AND r.id = ?"
		args = append(args, s.id)
	}
	if len(s.filter.TagIDs) > 0 {
		clause += " AND r.id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN (" + placeholders(len(s.filter.TagIDs)) + "))"
		args = append(args, int64Args(s.filter.TagIDs)...)
	}
	if len(s.filter.IngredientIDs) > 0 {
		clause += " AND r.id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN (" + placeholders(len(s.filter.IngredientIDs)) + "))"
		args = append(args, int64Args(s.filter.IngredientIDs)...)
	}
	return clause, args
}

func queryRecipes(ctx context.Context, db *sql.DB, scope recipeScope) ([]*models.Recipe, error) {
	where, args := scope.where()
	rows, err := db.QueryContext(ctx, "SELECT "+recipeColumns+" FROM recipes r WHERE "+where+" ORDER BY r.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := []*models.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return recipes, nil
}

// attachLabels loads tags and ingredients for recipes with one query per
// kind, joining through the same scope that selected them so the number of
// bound parameters does not grow with the number of recipes.
func attachLabels(ctx context.Context, db *sql.DB, scope recipeScope, recipes []*models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Recipe, len(recipes))
	for _, r := range recipes {
		r.Tags = []*models.Label{}
		r.Ingredients = []*models.Label{}
		byID[r.ID] = r
	}

	where, args := scope.where()
	for _, kind := range []models.LabelKind{models.KindTag, models.KindIngredient} {
		t := labelTables[kind]
		query := "SELECT j.recipe_id, l.id, l.user_id, l.name FROM " + t.joinTable + " j" +
			" JOIN " + t.table + " l ON l.id = j." + t.joinColumn +
			" JOIN recipes r ON r.id = j.recipe_id" +
			" WHERE " + where +
			" ORDER BY l.name, l.id"
		if err := scanRecipeLabels(ctx, db, query, args, kind, byID); err != nil {
			return err
		}
	}
	return nil
}

func scanRecipeLabels(ctx context.Context, db *sql.DB, query string, args []any, kind models.LabelKind, byID map[int64]*models.Recipe) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID int64
		label := &models.Label{Kind: kind}
		if err := rows.Scan(&recipeID, &label.ID, &label.UserID, &label.Name); err != nil {
			return err
		}
		r, ok := byID[recipeID]
		if !ok {
			// Created after the recipe rows were read.
			continue
		}
		if kind == models.KindTag {
			r.Tags = append(r.Tags, label)
		} else {
			r.Ingredients = append(r.Ingredients, label)
		}
	}
	return rows.Err()
}

// setRecipeLabels replaces the labels of one kind on a recipe with the named
// ones, resolving each name within userID's own labels.
func setRecipeLabels(ctx context.Context, q querier, kind models.LabelKind, userID, recipeID int64, names []string) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM "+t.joinTable+" WHERE recipe_id = ?", recipeID); err != nil {
		return fmt.Errorf("clear recipe %s: %w", kind.String(), err)
	}
	for _, name := range names {
		labelID, err := getOrCreateLabel(ctx, q, t, userID, name)
		if err != nil {
			return fmt.Errorf("resolve %s %q: %w", kind, name, err)
		}
		_, err = q.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+t.joinTable+"(recipe_id, "+t.joinColumn+") VALUES(?, ?)", recipeID, labelID)
		if err != nil {
			return fmt.Errorf("link %s %q: %w", kind, name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (*models.Recipe, error) {
	recipe := &models.Recipe{}
	err := row.Scan(&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.Description,
		&recipe.TimeMinutes, &recipe.Price, &recipe.Link, &recipe.CreatedAt)
	if err != nil {
		return nil, err
	}
	return recipe, nil
}
