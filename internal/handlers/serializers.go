package handlers

import (
	"errors"

	"github.com/recipe-box/app/internal/database"
	apierrors "github.com/recipe-box/app/internal/errors"
	"github.com/recipe-box/app/internal/models"
)

type labelResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type recipeResponse struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       string          `json:"price"`
	Link        string          `json:"link"`
	Tags        []labelResponse `json:"tags"`
	Ingredients []labelResponse `json:"ingredients"`
}

type recipeDetailResponse struct {
	recipeResponse
	Description string `json:"description"`
}

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func serializeLabel(l *models.Label) labelResponse {
	return labelResponse{ID: l.ID, Name: l.Name}
}

func serializeLabels(labels []*models.Label) []labelResponse {
	out := make([]labelResponse, len(labels))
	for i, l := range labels {
		out[i] = serializeLabel(l)
	}
	return out
}

func serializeRecipe(r *models.Recipe) recipeResponse {
	return recipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(2),
		Link:        r.Link,
		Tags:        serializeLabels(r.Tags),
		Ingredients: serializeLabels(r.Ingredients),
	}
}

func serializeRecipeDetail(r *models.Recipe) recipeDetailResponse {
	return recipeDetailResponse{
		recipeResponse: serializeRecipe(r),
		Description:    r.Description,
	}
}

func serializeUser(u *models.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

// storeError translates a database error for the response. Rows that are
// missing or belong to another user both become NOT_FOUND.
func storeError(err error, action string) error {
	if errors.Is(err, database.ErrNotFound) {
		return apierrors.New(apierrors.ErrCodeNotFound, "Not found.")
	}
	return apierrors.Wrap(apierrors.ErrCodeInternal, "failed to "+action, err)
}
