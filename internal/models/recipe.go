package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Recipe struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	TimeMinutes int
	Price       decimal.Decimal
	Link        string
	CreatedAt   time.Time
	Tags        []*Label
	Ingredients []*Label
}
