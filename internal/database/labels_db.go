package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/recipe-box/app/internal/models"
)

// labelTable names the tables backing one label kind.
type labelTable struct {
	table      string // e.g. "tags"
	joinTable  string // e.g. "recipe_tags"
	joinColumn string // e.g. "tag_id"
}

var labelTables = map[models.LabelKind]labelTable{
	models.KindTag:        {table: "tags", joinTable: "recipe_tags", joinColumn: "tag_id"},
	models.KindIngredient: {table: "ingredients", joinTable: "recipe_ingredients", joinColumn: "ingredient_id"},
}

func tableFor(kind models.LabelKind) (labelTable, error) {
	if !kind.Valid() {
		return labelTable{}, fmt.Errorf("unknown label kind %q", string(kind))
	}
	return labelTables[kind], nil
}

// CreateLabel inserts a new tag or ingredient owned by userID.
func CreateLabel(ctx context.Context, db *sql.DB, kind models.LabelKind, userID int64, name string) (*models.Label, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, "INSERT INTO "+t.table+"(user_id, name) VALUES(?, ?)", userID, name)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Label{ID: id, UserID: userID, Kind: kind, Name: name}, nil
}

// GetLabel retrieves a label by id, only if it is owned by userID.
func GetLabel(ctx context.Context, db *sql.DB, kind models.LabelKind, userID, id int64) (*models.Label, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	label := &models.Label{Kind: kind}
	row := db.QueryRowContext(ctx, "SELECT id, user_id, name FROM "+t.table+" WHERE id = ? AND user_id = ?", id, userID)
	if err := row.Scan(&label.ID, &label.UserID, &label.Name); err != nil {
		return nil, notFound(err)
	}
	return label, nil
}

// ListLabels returns the labels owned by userID, ordered by name descending.
// With assignedOnly set, only labels attached to at least one recipe are
// returned; each label appears once regardless of how many recipes use it.
func ListLabels(ctx context.Context, db *sql.DB, kind models.LabelKind, userID int64, assignedOnly bool) ([]*models.Label, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := "SELECT l.id, l.user_id, l.name FROM " + t.table + " l WHERE l.user_id = ?"
	if assignedOnly {
		query += " AND EXISTS (SELECT 1 FROM " + t.joinTable + " j WHERE j." + t.joinColumn + " = l.id)"
	}
	query += " ORDER BY l.name DESC, l.id DESC"

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := []*models.Label{}
	for rows.Next() {
		label := &models.Label{Kind: kind}
		if err := rows.Scan(&label.ID, &label.UserID, &label.Name); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// RenameLabel sets the name of a label owned by userID. A label owned by
// someone else is reported as ErrNotFound and left untouched.
func RenameLabel(ctx context.Context, db *sql.DB, kind models.LabelKind, userID, id int64, name string) (*models.Label, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, "UPDATE "+t.table+" SET name = ? WHERE id = ? AND user_id = ?", name, id, userID)
	if err != nil {
		return nil, fmt.Errorf("rename %s: %w", kind, err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return &models.Label{ID: id, UserID: userID, Kind: kind, Name: name}, nil
}

// DeleteLabel removes a label owned by userID together with its recipe links.
func DeleteLabel(ctx context.Context, db *sql.DB, kind models.LabelKind, userID, id int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+t.table+" WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return expectOneRow(res)
}

// getOrCreateLabel returns the id of userID's label called name, creating it
// when missing. If several labels share the name the oldest wins.
func getOrCreateLabel(ctx context.Context, q querier, t labelTable, userID int64, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		"SELECT id FROM "+t.table+" WHERE user_id = ? AND name = ? ORDER BY id LIMIT 1", userID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := q.ExecContext(ctx, "INSERT INTO "+t.table+"(user_id, name) VALUES(?, ?)", userID, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
