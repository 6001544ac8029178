package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/user"
	"github.com/restorank/restorank/services/metrics"
)

const pictureField = "newPicture"

func (s *Server) registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	// un-authed endpoints
	g.POST("/login", s.login)
	g.POST("/register", s.register)

	// authed endpoints
	g.GET("/me", s.me, jwt, s.requireUser)
	g.POST("/token-refresh", s.refreshToken, jwt, s.requireUser)
	g.PATCH("/changePassword", s.changePassword, jwt, s.requireUser)
	g.PATCH("/changePic", s.changePicture, jwt, s.requireUser)
}

func (s *Server) login(ctx echo.Context) error {
	var data user.LoginCredentials
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		metrics.Logins.WithLabelValues(metrics.Rejected).Inc()
		return errLoginFailed
	}

	usr, err := s.deps.UserSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues(metrics.Failure).Inc()
			return errLoginFailed
		}
		return errors.Wrap(err, "authenticating")
	}
	metrics.Logins.WithLabelValues(metrics.Success).Inc()

	token, err := NewToken(s.deps.Conf, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":        "Logged In Token",
		"displayMessage": "auth.login.success",
		"token":          token,
	})
}

func (s *Server) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	if data.Password != data.ConfirmPassword {
		return core.NewValidationError(user.ErrPasswordMismatch)
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	usr, err := s.deps.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		if errors.Is(err, user.ErrUserExists) {
			return errUserExists
		}
		return errors.Wrap(err, "registering user")
	}
	metrics.Registrations.Inc()

	return ctx.JSON(http.StatusCreated, echo.Map{
		"message":        "got these " + usr.Username + " " + usr.Email,
		"user":           usr,
		"displayMessage": "auth.register.accountCreated",
	})
}

func (s *Server) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, s.deps.UserSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Fetched user successfully", "user": usr})
}

func (s *Server) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, s.deps.Conf, s.deps.UserSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Token refreshed", "token": token})
}

func (s *Server) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, s.deps.UserSvc)
	if err != nil {
		return err
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	if data.OldPassword == "" || data.NewPassword == "" || data.NewConfPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "All password fields are required."})
	}
	if data.NewPassword != data.NewConfPassword {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{
			"message": "New password and new password confirmation doesn't match",
		})
	}
	if err = data.Validate(s.deps.Validate, usr); err != nil {
		return err
	}

	if err = s.deps.UserSvc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		if errors.Is(err, user.ErrIncorrectPassword) {
			return errIncorrectOldPwd
		}
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Changed password successfully"})
}

func (s *Server) changePicture(ctx echo.Context) error {
	usr, err := getContextUser(ctx, s.deps.UserSvc)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile(pictureField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "No File was uploaded."})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = src.Close() }()

	usr, err = s.deps.UserSvc.ChangeProfilePicture(ctx.Request().Context(), usr, user.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     src,
	})
	switch {
	case errors.Is(err, user.ErrNoPicture), errors.Is(err, user.ErrInvalidPicture), errors.Is(err, user.ErrPictureTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": err.Error()})
	case err != nil:
		return errors.Wrap(err, "changing profile picture")
	}

	token, err := NewToken(s.deps.Conf, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":     "Profile picture updated successfully!",
		"newImageUrl": usr.ProfilePictureURL,
		"token":       token,
	})
}
