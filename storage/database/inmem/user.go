package inmemdb

import (
	"context"
	"strings"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.unique(username, email, 0)
}

// unique must be called with the lock held. The user with id skip is ignored.
func (repo *userRepository) unique(username, email string, skip int) error {
	for id, usr := range repo.db.data.users {
		if id == skip {
			continue
		}
		if strings.EqualFold(usr.Username, username) || strings.EqualFold(usr.Email, email) {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(exec)()

	if err := repo.unique(usr.Username, usr.Email, 0); err != nil {
		return user.User{}, err
	}

	usr.ID = repo.db.nextID("users")
	if usr.ProfilePictureURL == "" {
		usr.ProfilePictureURL = user.DefaultProfilePicture
	}
	usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	repo.db.data.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.data.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.data.users {
		switch {
		case filter.Username != "":
			if strings.EqualFold(usr.Username, filter.Username) {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if strings.EqualFold(usr.Username, filter.UsernameOrEmail) || strings.EqualFold(usr.Email, filter.UsernameOrEmail) {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(exec)()

	orig, ok := repo.db.data.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.unique(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	orig.Username = usr.Username
	orig.Email = usr.Email
	orig.LastLogin = usr.LastLogin
	if usr.PasswordHash != nil {
		orig.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	}
	if usr.ProfilePictureURL != "" {
		orig.ProfilePictureURL = usr.ProfilePictureURL
	}

	repo.db.data.users[usr.ID] = orig
	return orig, nil
}
