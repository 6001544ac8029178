package user

import (
	"context"
	"io"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrUserExists         = errors.New("a user with this username or email already exists")
	ErrPasswordMismatch   = errors.New("auth.register.passwordNotMatch")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrIncorrectPassword  = errors.New("incorrect old password")
	ErrNoPicture          = errors.New("no picture uploaded")
	ErrInvalidPicture     = errors.New("only jpeg, jpg, png, gif and webp images are allowed")
	ErrPictureTooLarge    = errors.New("picture is too large")
)

const picturePrefix = "newPicture-"

type (
	Repository interface {
		// CheckUniqueness returns ErrUserExists if the username or the email is taken (case-insensitive).
		CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	// PictureStorage persists uploaded profile pictures under a flat namespace.
	PictureStorage interface {
		Save(name string, r io.Reader) error
		Remove(name string) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, username, pwd string) (User, error)
		GetByID(ctx context.Context, id int) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) error
		ChangeProfilePicture(ctx context.Context, usr User, up Upload) (User, error)
		// AddUser creates a user, or updates the email & password of an existing one.
		AddUser(ctx context.Context, uname, email, pwd string) (User, error)
		ResetPassword(ctx context.Context, uname, pwd string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		pics    PictureStorage
		logger  core.Logger
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, pics PictureStorage, logger core.Logger, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		pics:    pics,
		logger:  logger,
		conf:    conf,
	}
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.repo.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	usr := User{
		Username:          nu.Username,
		Email:             nu.Email,
		ProfilePictureURL: DefaultProfilePicture,
		CreatedAt:         time.Now().UTC(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendMail(usr, "welcome", "Welcome")
	return usr, nil
}

// Authenticate checks the credentials and records the login time.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (svc *service) Authenticate(ctx context.Context, username, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}

	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return ErrIncorrectPassword
	}
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	svc.sendMail(usr, "password_changed", "Your password has been changed")
	return nil
}

// ChangeProfilePicture stores the upload under a unique name, points the user to it,
// then removes the previous custom picture.
func (svc *service) ChangeProfilePicture(ctx context.Context, usr User, up Upload) (User, error) {
	if err := up.Validate(svc.conf.Upload.MaxSize); err != nil {
		return User{}, err
	}

	name := picturePrefix + uuid.NewString() + up.Ext()
	if err := svc.pics.Save(name, up.Content); err != nil {
		return User{}, errors.Wrap(err, "saving profile picture")
	}

	prev := usr
	usr.ProfilePictureURL = name
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		svc.removePicture(name)
		return User{}, err
	}
	if prev.HasCustomPicture() {
		svc.removePicture(prev.ProfilePictureURL)
	}
	return usr, nil
}

func (svc *service) AddUser(ctx context.Context, uname, email, pwd string) (User, error) {
	uname = core.CleanString(uname)
	email = core.CleanString(email, true /* lower */)

	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: uname})
	switch {
	case errors.Is(err, ErrNotFound):
		usr = User{
			Username:          uname,
			Email:             email,
			ProfilePictureURL: DefaultProfilePicture,
			CreatedAt:         time.Now().UTC(),
		}
		if err = usr.SetPassword(pwd); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		if err = svc.repo.CheckUniqueness(ctx, uname, email); err != nil {
			return User{}, err
		}
		return svc.repo.CreateUser(ctx, usr)
	case err != nil:
		return User{}, err
	}

	usr.Email = email
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ResetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) removePicture(name string) {
	if err := svc.pics.Remove(name); err != nil {
		svc.logger.Warn("removing profile picture "+name, err)
	}
}

func (svc *service) sendMail(usr User, tmpl, subject string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: map[string]interface{}{"Username": usr.Username},
	})
}
