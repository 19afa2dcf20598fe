package models

// LabelKind distinguishes the two kinds of named, user-owned recipe
// attributes. Both are stored in their own table but behave identically.
type LabelKind string

const (
	KindTag        LabelKind = "tag"
	KindIngredient LabelKind = "ingredient"
)

// Label is a tag or an ingredient.
type Label struct {
	ID     int64
	UserID int64
	Kind   LabelKind
	Name   string
}

// String returns the plural resource name, e.g. "tags".
func (k LabelKind) String() string {
	return string(k) + "s"
}

// Valid reports whether k is one of the known kinds.
func (k LabelKind) Valid() bool {
	return k == KindTag || k == KindIngredient
}
