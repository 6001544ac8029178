package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/user"
)

const userColumns = `id, username, email, password_hash, profile_picture_url, created_at, last_login`

type userRow struct {
	ID                int         `boil:"id"`
	Username          string      `boil:"username"`
	Email             string      `boil:"email"`
	PasswordHash      []byte      `boil:"password_hash"`
	ProfilePictureURL null.String `boil:"profile_picture_url"`
	CreatedAt         time.Time   `boil:"created_at"`
	LastLogin         null.Time   `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:                usr.ID,
		Username:          usr.Username,
		Email:             usr.Email,
		PasswordHash:      usr.PasswordHash,
		ProfilePictureURL: null.NewString(usr.ProfilePictureURL, usr.ProfilePictureURL != ""),
		CreatedAt:         usr.CreatedAt.UTC(),
		LastLogin:         null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	pic := row.ProfilePictureURL.String
	if pic == "" {
		pic = user.DefaultProfilePicture
	}
	return user.User{
		ID:                row.ID,
		Username:          row.Username,
		Email:             row.Email,
		ProfilePictureURL: pic,
		PasswordHash:      row.PasswordHash,
		CreatedAt:         row.CreatedAt.UTC(),
		LastLogin:         row.LastLogin.Time.UTC(),
	}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation reports whether err comes from the username or email unique index.
func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok && !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error {
	var res struct {
		Exists bool `boil:"exists"`
	}
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2)) AS "exists"`
	if err := queries.Raw(q, username, email).Bind(ctx, repo.getExec(exec), &res); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if res.Exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	u := repo.boil(usr)
	q := `INSERT INTO users (username, email, password_hash, profile_picture_url, created_at, last_login)
		VALUES ($1, $2, $3, COALESCE($4, 'default-avatar.png'), $5, $6)
		RETURNING ` + userColumns

	var row userRow
	err := queries.Raw(q, u.Username, u.Email, u.PasswordHash, u.ProfilePictureURL, u.CreatedAt, u.LastLogin).
		Bind(ctx, repo.getExec(exec), &row)
	switch {
	case isUniqueViolation(err):
		return user.User{}, user.ErrUserExists
	case err != nil:
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		where string
		arg   interface{}
	)
	switch {
	case filter.ID != 0:
		where, arg = "id = $1", filter.ID
	case filter.Username != "":
		where, arg = "LOWER(username) = LOWER($1)", filter.Username
	case filter.UsernameOrEmail != "":
		where, arg = "LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE " + where + " LIMIT 1"
	if err := queries.Raw(q, arg).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	u := repo.boil(usr)
	q := `UPDATE users
		SET username = $2, email = $3, password_hash = $4, profile_picture_url = COALESCE($5, profile_picture_url), last_login = $6
		WHERE id = $1
		RETURNING ` + userColumns

	var row userRow
	err := queries.Raw(q, u.ID, u.Username, u.Email, u.PasswordHash, u.ProfilePictureURL, u.LastLogin).
		Bind(ctx, repo.getExec(exec), &row)
	switch {
	case isUniqueViolation(err):
		return user.User{}, user.ErrUserExists
	case err != nil:
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return repo.unboil(row), nil
}
