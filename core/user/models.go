package user

import (
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/restorank/restorank/core"
)

// DefaultProfilePicture is served from the public assets directory.
const DefaultProfilePicture = "default-avatar.png"

var allowedPictureTypes = regexp.MustCompile(`jpeg|jpg|png|gif|webp`)

type User struct {
	ID                int       `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	PasswordHash      []byte    `json:"-"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	LastLogin         time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// HasCustomPicture reports whether the user uploaded their own profile picture.
func (u *User) HasCustomPicture() bool {
	return u.ProfilePictureURL != "" && u.ProfilePictureURL != DefaultProfilePicture
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// ChangePassword defines what is needed to change the password of an authenticated User.
type ChangePassword struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	NewConfPassword string `json:"newConfPassword" validate:"required,eqfield=NewPassword"`

	// attributes of the user the new password must not resemble
	username string
	email    string
}

func (cp *ChangePassword) Validate(validate *validator.Validate, usr User) error {
	cp.username = usr.Username
	cp.email = usr.Email
	return validate.Struct(cp)
}

type LoginCredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (lc *LoginCredentials) Validate(validate *validator.Validate) error {
	lc.Username = core.CleanString(lc.Username)
	return validate.Struct(lc)
}

// Upload is a profile picture sent by a User.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Ext returns the lower-cased file extension, dot included.
func (up Upload) Ext() string {
	return strings.ToLower(filepath.Ext(up.Filename))
}

// Validate checks both the MIME type and the extension against the allowed image types.
func (up Upload) Validate(maxSize int64) error {
	if up.Content == nil || up.Filename == "" {
		return ErrNoPicture
	}
	if maxSize > 0 && up.Size > maxSize {
		return ErrPictureTooLarge
	}
	if !(allowedPictureTypes.MatchString(up.ContentType) && allowedPictureTypes.MatchString(up.Ext())) {
		return ErrInvalidPicture
	}
	return nil
}

type GetFilter struct {
	ID              int
	Username        string
	UsernameOrEmail string
}
