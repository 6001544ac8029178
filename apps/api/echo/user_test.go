package echoapi_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/restorank/restorank/apps/api/echo"
	"github.com/restorank/restorank/core/user"
	emailsvc "github.com/restorank/restorank/services/email"
	"github.com/restorank/restorank/tests"
)

func parseToken(t *testing.T, app *testApp, token string) *echoapi.Claims {
	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(app.conf.SecretKey), nil
	})
	require.NoError(t, err, "parseToken()")
	return claims
}

func Test_userAPI_register(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "rami", "rami@test.lb", "Sfiha&Ayran1")

	reg := func(uname, email, pwd, confPwd string) []byte {
		return marshalObj(t, echoMap{"username": uname, "email": email, "password": pwd, "confirmPassword": confPwd})
	}

	tests := []httpTest{
		{
			name: "invalid body", body: []byte(`{"username":`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, echoMap{"message": "Invalid request body"}),
		},
		{
			name: "password mismatch", body: reg("nour", "nour@test.lb", "Cedar&Snow99", "Cedar&Snow98"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, echoMap{"error": "auth.register.passwordNotMatch"}),
		},
		{
			name: "username taken", body: reg("RAMI", "other@test.lb", "Cedar&Snow99", "Cedar&Snow99"),
			wantCode: http.StatusConflict, wantData: marshalObj(t, echoMap{"error": "auth.register.alreadyExist"}),
		},
		{
			name: "email taken", body: reg("other", "Rami@Test.lb", "Cedar&Snow99", "Cedar&Snow99"),
			wantCode: http.StatusConflict, wantData: marshalObj(t, echoMap{"error": "auth.register.alreadyExist"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/register"
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("invalid fields", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/register", body: reg("n!", "nope", "12345678", "12345678"),
			wantCode: http.StatusBadRequest,
		})
		var fldErrs map[string]string
		decode(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "username")
		assert.Contains(t, fldErrs, "email")
	})

	t.Run("weak password", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/register", body: reg("nourhan", "nourhan@test.lb", "nourhan1", "nourhan1"),
			wantCode: http.StatusBadRequest,
		})
		var fldErrs map[string]string
		decode(t, rec, &fldErrs)
		assert.Equal(t, "password cannot be similar to user attributes", fldErrs["password"])
	})

	t.Run("success", func(t *testing.T) {
		emailsvc.ResetSent()
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/register", body: reg(" nour ", "Nour@Test.lb", "Cedar&Snow99", "Cedar&Snow99"),
			wantCode: http.StatusCreated,
		})

		var resp struct {
			Message        string    `json:"message"`
			DisplayMessage string    `json:"displayMessage"`
			User           user.User `json:"user"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, "got these nour nour@test.lb", resp.Message)
		assert.Equal(t, "auth.register.accountCreated", resp.DisplayMessage)
		assert.Equal(t, "nour", resp.User.Username)
		assert.Equal(t, user.DefaultProfilePicture, resp.User.ProfilePictureURL)
		assert.NotContains(t, rec.Body.String(), "password")

		usr, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "nour"})
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("Cedar&Snow99"))

		sent := emailsvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "nour@test.lb", sent[0].To[0].Address)
		assert.Equal(t, "Welcome", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "Hi nour,")
	})
}

func Test_userAPI_login(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "rami", "rami@test.lb", "Sfiha&Ayran1")

	login := func(uname, pwd string) []byte {
		return marshalObj(t, echoMap{"username": uname, "password": pwd})
	}
	errLogin := marshalObj(t, echoMap{"message": "Invalid username or password", "error": "auth.login.wrong"})

	tests := []httpTest{
		{name: "no credentials", body: login("", ""), wantCode: http.StatusUnauthorized, wantData: errLogin},
		{name: "unknown user", body: login("nobody", "Sfiha&Ayran1"), wantCode: http.StatusUnauthorized, wantData: errLogin},
		{name: "wrong password", body: login("rami", "Sfiha&Ayran2"), wantCode: http.StatusUnauthorized, wantData: errLogin},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/login"
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	for _, uname := range []string{"rami", "RAMI", "rami@test.lb"} {
		t.Run("login with "+uname, func(t *testing.T) {
			rec := app.run(t, httpTest{method: http.MethodPost, path: "/api/login", body: login(uname, "Sfiha&Ayran1")})

			var resp struct {
				Message        string `json:"message"`
				DisplayMessage string `json:"displayMessage"`
				Token          string `json:"token"`
			}
			decode(t, rec, &resp)
			assert.Equal(t, "Logged In Token", resp.Message)
			assert.Equal(t, "auth.login.success", resp.DisplayMessage)

			claims := parseToken(t, app, resp.Token)
			assert.Equal(t, usr.ID, claims.UserID)
			assert.Equal(t, "rami", claims.Username)
			assert.Equal(t, "rami@test.lb", claims.Email)
		})
	}

	refreshed, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, refreshed.LastLogin.IsZero(), "last login not recorded")
}

func Test_userAPI_me(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "rami", "rami@test.lb", "Sfiha&Ayran1")

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "invalid token", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{
			name: "deleted user", token: getToken(t, app.conf, user.User{ID: usr.ID + 100, Username: "ghost"}),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, echoMap{"message": "User not found"}),
		},
	}
	for _, tt := range tests {
		tt.path = "/api/me"
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("authenticated", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/me", token: getToken(t, app.conf, usr)})
		var resp struct {
			User user.User `json:"user"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.Equal(t, "rami", resp.User.Username)
	})
}

func Test_userAPI_refreshToken(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "rami", "rami@test.lb", "Sfiha&Ayran1")

	origIat := time.Now().Add(-time.Hour).Unix()
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr, origIat))
	require.NoError(t, err)

	rec := app.run(t, httpTest{method: http.MethodPost, path: "/api/token-refresh", token: token})
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	claims := parseToken(t, app, resp.Token)
	assert.Equal(t, usr.ID, claims.UserID)
	assert.Equal(t, origIat, claims.OrigIssuedAt, "the refresh window must not slide")

	t.Run("refresh expired", func(t *testing.T) {
		stale := time.Now().Add(-app.conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()
		token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr, stale))
		require.NoError(t, err)

		app.run(t, httpTest{
			method: http.MethodPost, path: "/api/token-refresh", token: token,
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, echoMap{"error": "refresh has expired"}),
		})
	})
}

func Test_userAPI_changePassword(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "rami", "rami@test.lb", "Sfiha&Ayran1")
	token := getToken(t, app.conf, usr)

	body := func(oldPwd, newPwd, confPwd string) []byte {
		return marshalObj(t, echoMap{"oldPassword": oldPwd, "newPassword": newPwd, "newConfPassword": confPwd})
	}

	tests := []httpTest{
		{name: "no token", body: body("Sfiha&Ayran1", "Kibbeh&Labneh2", "Kibbeh&Labneh2"), wantCode: http.StatusUnauthorized},
		{
			name: "missing field", token: token, body: body("Sfiha&Ayran1", "", "Kibbeh&Labneh2"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, echoMap{"message": "All password fields are required."}),
		},
		{
			name: "confirmation mismatch", token: token, body: body("Sfiha&Ayran1", "Kibbeh&Labneh2", "Kibbeh&Labneh3"),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoMap{"message": "New password and new password confirmation doesn't match"}),
		},
		{
			name: "weak new password", token: token, body: body("Sfiha&Ayran1", "short", "short"),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoMap{"newPassword": "password must contain at least 8 characters"}),
		},
		{
			name: "wrong old password", token: token, body: body("Sfiha&Ayran2", "Kibbeh&Labneh2", "Kibbeh&Labneh2"),
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, echoMap{
				"message":        "Old password is not correct",
				"displayMessage": "auth.changeProfileSettings.incorrectOldPassword",
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPatch
		tt.path = "/api/changePassword"
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("success", func(t *testing.T) {
		emailsvc.ResetSent()
		app.run(t, httpTest{
			method: http.MethodPatch, path: "/api/changePassword", token: token,
			body:     body("Sfiha&Ayran1", "Kibbeh&Labneh2", "Kibbeh&Labneh2"),
			wantData: marshalObj(t, echoMap{"message": "Changed password successfully"}),
		})

		refreshed, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword("Kibbeh&Labneh2"))

		sent := emailsvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "Your password has been changed", sent[0].Subject)
	})
}

func newPictureRequest(t *testing.T, token, filename, contentType string, content []byte) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="newPicture"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("other", "value"))
	}
	require.NoError(t, w.Close())

	req := newAuthRequest(http.MethodPatch, "/api/changePic", token, body.Bytes())
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func Test_userAPI_changePicture(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "rami", "rami@test.lb", "Sfiha&Ayran1")
	token := getToken(t, app.conf, usr)
	png := []byte("\x89PNG\r\n\x1a\nfake")

	badRequest := func(msg string) []byte { return marshalObj(t, echoMap{"message": msg}) }

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantData []byte
	}{
		{name: "no token", req: newPictureRequest(t, "", "me.png", "image/png", png), wantCode: http.StatusUnauthorized},
		{
			name: "no file", req: newPictureRequest(t, token, "", "", nil),
			wantCode: http.StatusBadRequest, wantData: badRequest("No File was uploaded."),
		},
		{
			name: "not an image", req: newPictureRequest(t, token, "notes.txt", "text/plain", []byte("hi")),
			wantCode: http.StatusBadRequest, wantData: badRequest(user.ErrInvalidPicture.Error()),
		},
		{
			name: "image type but wrong extension", req: newPictureRequest(t, token, "me.exe", "image/png", png),
			wantCode: http.StatusBadRequest, wantData: badRequest(user.ErrInvalidPicture.Error()),
		},
		{
			name: "too large", req: newPictureRequest(t, token, "me.png", "image/png", bytes.Repeat([]byte("a"), int(app.conf.Upload.MaxSize)+1)),
			wantCode: http.StatusBadRequest, wantData: badRequest(user.ErrPictureTooLarge.Error()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}

	upload := func(t *testing.T) string {
		rec := app.do(newPictureRequest(t, token, "Me.PNG", "image/png", png))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Message     string `json:"message"`
			NewImageURL string `json:"newImageUrl"`
			Token       string `json:"token"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, "Profile picture updated successfully!", resp.Message)
		assert.True(t, strings.HasPrefix(resp.NewImageURL, "newPicture-"), resp.NewImageURL)
		assert.True(t, strings.HasSuffix(resp.NewImageURL, ".png"), resp.NewImageURL)
		assert.Equal(t, resp.NewImageURL, parseToken(t, app, resp.Token).ProfilePictureURL)

		saved, err := os.ReadFile(filepath.Join(app.conf.Upload.Dir, resp.NewImageURL))
		require.NoError(t, err)
		assert.Equal(t, png, saved)
		return resp.NewImageURL
	}

	first := upload(t)
	second := upload(t)
	assert.NotEqual(t, first, second)

	_, err := os.Stat(filepath.Join(app.conf.Upload.Dir, first))
	assert.True(t, os.IsNotExist(err), "previous picture not removed")

	refreshed, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, second, refreshed.ProfilePictureURL)

	t.Run("served under /uploads", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/uploads/"+second, ""))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, png, rec.Body.Bytes())
	})

	t.Run("upload directory gone", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(app.conf.Upload.Dir))

		rec := app.do(newPictureRequest(t, token, "me.png", "image/png", png))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		select {
		case <-app.server.ShutdownSignal():
		case <-time.After(time.Second):
			t.Fatal("shutdown was not requested")
		}
	})
}
