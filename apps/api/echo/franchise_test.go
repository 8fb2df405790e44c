package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
	emailsvc "github.com/skedutech/portal/services/email"
	storagesvc "github.com/skedutech/portal/services/storage"
	inmemdb "github.com/skedutech/portal/storage/database/inmem"
	testutil "github.com/skedutech/portal/tests"
)

type testApp struct {
	server  *Server
	repo    franchise.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setupAPI(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	conf.MediaRoot = t.TempDir()
	conf.MediaBaseURL = "/media"

	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewFranchiseRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := franchise.NewService(repo, mailSvc, testutil.NopLogger{}, conf)

	fileStorage, err := storagesvc.NewLocalService(conf)
	require.NoError(t, err)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	franchise.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       testutil.NopLogger{},
		FranchiseSvc: svc,
		Storage:      fileStorage,
		Validate:     validate,
		Translator:   translator,
	})
	return &testApp{server: server, repo: repo, mailSvc: mailSvc}
}

func (app *testApp) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"name":             "Bright Minds Academy",
		"owner":            "Asha Rao",
		"designation":      "Director",
		"dateOfBirth":      "1985-06-15",
		"email":            "asha@brightminds.test",
		"mobile":           "9876543210",
		"address":          "12 MG Road",
		"state":            "Karnataka",
		"city":             "Bengaluru",
		"pincode":          "560001",
		"planValidityDays": 180,
	}
}

func Test_franchiseApi_create(t *testing.T) {
	app := setupAPI(t)

	rec := app.request(t, http.MethodPost, "/v1/franchises", validPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Pending", got["status"])
	assert.Equal(t, "Pending", got["verificationStatus"])
	assert.Equal(t, "AdminCreated", got["applicationType"])
	assert.NotEmpty(t, got["franchiseId"])

	// the hash must never surface on the wire
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")
}

func Test_franchiseApi_create_validation(t *testing.T) {
	app := setupAPI(t)

	payload := validPayload()
	delete(payload, "email")
	rec := app.request(t, http.MethodPost, "/v1/franchises", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	payload = validPayload()
	payload["planValidityDays"] = 100
	rec = app.request(t, http.MethodPost, "/v1/franchises", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func Test_franchiseApi_create_conflict(t *testing.T) {
	app := setupAPI(t)

	rec := app.request(t, http.MethodPost, "/v1/franchises", validPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	payload := validPayload()
	payload["mobile"] = "9876543211" // same email, new mobile
	rec = app.request(t, http.MethodPost, "/v1/franchises", payload)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func Test_franchiseApi_manage(t *testing.T) {
	app := setupAPI(t)

	f := testutil.CreateFranchise(t, app.repo, "Sunrise Centre", "Vikram Shah", "vikram@test.in", "9000000010")

	rec := app.request(t, http.MethodPatch, "/v1/franchises/"+f.ID+"/manage", map[string]string{
		"status":             "Active",
		"verificationStatus": "Verified",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Active", got["status"])
	assert.Equal(t, "Verified", got["verificationStatus"])
	assert.NotEmpty(t, got["activationDate"])
	assert.NotEmpty(t, got["expireDate"])

	require.Len(t, app.mailSvc.SentMessages, 1)
	assert.Equal(t, "franchise-activated", app.mailSvc.SentMessages[0].TemplateName)
}

func Test_franchiseApi_manage_badInput(t *testing.T) {
	app := setupAPI(t)

	f := testutil.CreateFranchise(t, app.repo, "Centre", "Owner", "o@test.in", "9000000011")

	// bogus status value
	rec := app.request(t, http.MethodPatch, "/v1/franchises/"+f.ID+"/manage", map[string]string{
		"status": "SuperActive",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// both fields empty
	rec = app.request(t, http.MethodPatch, "/v1/franchises/"+f.ID+"/manage", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func Test_franchiseApi_manage_notFound(t *testing.T) {
	app := setupAPI(t)

	rec := app.request(t, http.MethodPatch, "/v1/franchises/nope/manage", map[string]string{
		"status": "Active",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func Test_franchiseApi_lists(t *testing.T) {
	app := setupAPI(t)

	live := testutil.CreateFranchise(t, app.repo, "Apple Centre", "B", "b@test.in", "9000000020")
	pending := testutil.CreateFranchise(t, app.repo, "Pending Centre", "C", "c@test.in", "9000000021")

	rec := app.request(t, http.MethodPatch, "/v1/franchises/"+live.ID+"/manage", map[string]string{
		"status":             "Active",
		"verificationStatus": "Verified",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/v1/franchises", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var gotList []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotList))
	require.Len(t, gotList, 1)
	assert.Equal(t, live.ID, gotList[0]["id"])

	rec = app.request(t, http.MethodGet, "/v1/franchises/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotList))
	require.Len(t, gotList, 1)
	assert.Equal(t, pending.ID, gotList[0]["id"])

	// filtered view
	rec = app.request(t, http.MethodGet, "/v1/franchises?status=Pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotList))
	require.Len(t, gotList, 1)
	assert.Equal(t, pending.ID, gotList[0]["id"])
}

func Test_franchiseApi_retrieveUpdateDestroy(t *testing.T) {
	app := setupAPI(t)

	f := testutil.CreateFranchise(t, app.repo, "Lotus Centre", "Ravi Kumar", "ravi@test.in", "9000000030")

	rec := app.request(t, http.MethodGet, "/v1/franchises/"+f.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodPut, "/v1/franchises/"+f.ID, map[string]interface{}{
		"city": "Mysuru",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Mysuru", got["city"])
	assert.Equal(t, "ravi@test.in", got["email"]) // untouched fields survive

	rec = app.request(t, http.MethodDelete, "/v1/franchises/"+f.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.request(t, http.MethodGet, "/v1/franchises/"+f.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_franchiseApi_resendCredentials(t *testing.T) {
	app := setupAPI(t)

	f := testutil.CreateFranchise(t, app.repo, "Palm Centre", "Nisha Jain", "nisha@test.in", "9000000040")

	rec := app.request(t, http.MethodPost, "/v1/franchises/"+f.ID+"/resend-credentials", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, app.mailSvc.SentMessages, 1)
	assert.Equal(t, "franchise-credentials", app.mailSvc.SentMessages[0].TemplateName)

	// delivery failure surfaces as a server error after the hash rotated
	app.mailSvc.FailSend = assert.AnError
	rec = app.request(t, http.MethodPost, "/v1/franchises/"+f.ID+"/resend-credentials", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "resend-credentials")
}
