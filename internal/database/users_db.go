package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/recipe-box/app/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = "id, email, name, password_hash, is_active, created_at"

// NormalizeEmail lower-cases the domain part of an address, leaving the
// local part as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// CreateUser hashes the password and inserts a new user into the database.
func CreateUser(ctx context.Context, db *sql.DB, email, password, name string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO users(email, name, password_hash) VALUES(?, ?, ?)",
		NormalizeEmail(email), name, string(hashedPassword))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return GetUserByID(ctx, db, id)
}

// GetUserByEmail retrieves a user by their email address.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormalizeEmail(email))
	return scanUser(row)
}

// GetUserByID retrieves a user by their ID.
func GetUserByID(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// UpdateUser changes the name and, when password is non-empty, the password
// of the given user.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, name *string, password string) (*models.User, error) {
	if name != nil {
		if _, err := db.ExecContext(ctx, "UPDATE users SET name = ? WHERE id = ?", *name, id); err != nil {
			return nil, fmt.Errorf("update user name: %w", err)
		}
	}
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		if _, err := db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hashed), id); err != nil {
			return nil, fmt.Errorf("update user password: %w", err)
		}
	}
	return GetUserByID(ctx, db, id)
}

// VerifyPassword compares a stored hashed password with a plaintext password.
func VerifyPassword(hashedPassword string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}
