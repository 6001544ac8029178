package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/restorank/restorank/apps/api/echo"
	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
	"github.com/restorank/restorank/fs"
	emailsvc "github.com/restorank/restorank/services/email"
	filesvc "github.com/restorank/restorank/services/files"
	"github.com/restorank/restorank/tests"
)

var errMissingToken = echoMap{
	"message":        "No token provided. Authorization denied",
	"displayMessage": "Log in first",
}

type echoMap map[string]interface{}

type testApp struct {
	conf     *core.Config
	server   *echoapi.Server
	usrRepo  user.Repository
	usrSvc   user.Service
	restoSvc restaurant.Service
}

func setup(t *testing.T) *testApp {
	conf := testutil.NewConfig(t)
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, logger)

	st := testutil.NewMemoryStore(t)
	pics, err := filesvc.NewDiskStorage(conf.Upload.Dir)
	require.NoError(t, err)

	emailsvc.ResetSent()
	usrSvc := user.NewService(st.Users, emailsvc.NewConsoleServiceMock(conf, logger), pics, logger, conf)
	restoSvc := restaurant.NewService(st.Restaurants, st.Tx, conf.Listing)

	return &testApp{
		conf:     conf,
		usrRepo:  st.Users,
		usrSvc:   usrSvc,
		restoSvc: restoSvc,
		server: echoapi.NewServer(echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			RestaurantSvc: restoSvc,
			Validate:      validate,
			Translator:    translator,
		}),
	}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	rec := app.do(newAuthRequest(method, tt.path, tt.token, tt.body))
	if tt.wantCode != 0 || tt.wantData != nil {
		checkCodeAndData(t, tt, rec)
	}
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.NewToken(conf, usr)
	require.NoError(t, err, "getToken()")
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marshalObj()")
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decode(): %s", rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, "code; body: %s", rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func TestServer_home(t *testing.T) {
	app := setup(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Restorank API!", rec.Body.String())

	rec = app.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
