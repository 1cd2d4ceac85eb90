package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/middleware"
	"brandreport-service/internal/model"
	"brandreport-service/internal/store"
	"brandreport-service/pkg/config"
	"brandreport-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	e     *echo.Echo
	store *store.MemoryStore
}

// newTestServer wires the full route table against an in-memory store and
// seeds the fixture: one admin, two users, two brands, events for both
// brands and one brand-less event. "acme_user" is allocated Acme only.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	jwtutil.Initialize(&config.JWTConfig{
		SigningKey:      "handler-test-signing-key-0123456789",
		ExpirationHours: 1,
	})

	st := store.NewMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, st.CreateUser(&model.User{ID: 1, Username: "admin", Password: string(hash), Role: model.RoleAdmin}))
	require.NoError(t, st.CreateUser(&model.User{ID: 2, Username: "acme_user", Password: string(hash), Role: model.RoleUser}))
	require.NoError(t, st.CreateUser(&model.User{ID: 3, Username: "idle_user", Password: string(hash), Role: model.RoleUser}))

	require.NoError(t, st.CreateBrand(&model.Brand{ID: 10, Name: "Acme", MasterOutletID: "MO-A", CreatedBy: 1}))
	require.NoError(t, st.CreateBrand(&model.Brand{ID: 11, Name: "Bolt", MasterOutletID: "MO-B", CreatedBy: 1}))

	require.NoError(t, st.CreateAllocation(&model.Allocation{UserID: 1, BrandID: 10, AllocatedBy: 1}))
	require.NoError(t, st.CreateAllocation(&model.Allocation{UserID: 2, BrandID: 10, AllocatedBy: 1}))

	acme, bolt := uint(10), uint(11)
	add := func(brand *uint, storeID string, lt model.LoginType, date string) {
		d, err := time.Parse(model.DateLayout, date)
		require.NoError(t, err)
		st.AddEvent(&model.LoginEvent{
			BrandID:       brand,
			StoreID:       storeID,
			ClientStoreID: "C-" + storeID,
			ManagerName:   "Manager " + storeID,
			ManagerNumber: "07-" + storeID,
			LoginType:     lt,
			LoginDate:     d,
		})
	}
	add(&acme, "S1", model.LoginTypeParent, "2026-03-01")
	add(&acme, "S1", model.LoginTypeTeamMember, "2026-03-02")
	add(&acme, "S2", model.LoginTypeParent, "2026-03-03")
	add(&bolt, "S3", model.LoginTypeParent, "2026-03-01")
	add(&bolt, "S3", model.LoginTypeTeamMember, "2026-03-05")
	add(nil, "S4", model.LoginTypeParent, "2026-03-04")

	cfg := &config.Config{Export: config.ExportConfig{BatchSize: 2, PageLimit: 1000}}
	h := New(st, cfg)

	e := echo.New()
	e.POST("/auth/login", h.Login)

	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.POST("/auth/register", h.Register)
	api.GET("/auth/verify", h.Verify)
	api.GET("/brands", h.ListBrands)
	api.POST("/brands", h.CreateBrand)
	api.GET("/brands/:id", h.GetBrand)
	api.PATCH("/brands/:id", h.UpdateBrand)
	api.DELETE("/brands/:id", h.DeleteBrand)
	api.GET("/brands/:id/export", h.ExportBrand)
	api.GET("/users", h.ListUsers)
	api.GET("/users/:id", h.GetUser)
	api.GET("/users/me/brands", h.MyBrands)
	api.POST("/allocations", h.Allocate)
	api.GET("/allocations/:user_id", h.UserAllocations)
	api.DELETE("/allocations/:user_id/:brand_id", h.Deallocate)
	api.GET("/reports/login-logs", h.LoginLogs)
	api.GET("/reports/daily-summary", h.DailySummary)
	api.GET("/reports/brand-summary", h.BrandSummary)
	api.GET("/reports/export", h.ExportAll)
	api.GET("/reports/export/mine", h.ExportMine)

	return &testServer{e: e, store: st}
}

func (ts *testServer) token(t *testing.T, userID uint) string {
	t.Helper()
	user, err := ts.store.FindUserByID(userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	token, err := jwtutil.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (ts *testServer) request(method, path, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestLoginSuccess(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodPost, "/auth/login", "",
		`{"username":"acme_user","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
}

func TestLoginFailureIsUniform(t *testing.T) {
	ts := newTestServer(t)

	unknown := ts.request(http.MethodPost, "/auth/login", "",
		`{"username":"no_such_user","password":"whatever"}`)
	wrongPassword := ts.request(http.MethodPost, "/auth/login", "",
		`{"username":"acme_user","password":"wrong"}`)

	// An unknown username and a wrong password must be indistinguishable.
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, unknown.Body.String(), wrongPassword.Body.String())
	assert.Equal(t, apperr.CodeAuthFailure, decode(t, unknown)["code"])
}

func TestRequestWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/brands", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeletedUserTokenIsRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, 3)

	ts.store.DeleteUser(3)

	rec := ts.request(http.MethodGet, "/api/auth/verify", token, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.CodeIdentityNotFound, decode(t, rec)["code"])
}

func TestRegisterRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodPost, "/api/auth/register", ts.token(t, 2),
		`{"username":"newbie","password":"secret"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.CodeInsufficientRole, decode(t, rec)["code"])

	rec = ts.request(http.MethodPost, "/api/auth/register", ts.token(t, 1),
		`{"username":"newbie","password":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestListBrandsScoped(t *testing.T) {
	ts := newTestServer(t)

	admin := decode(t, ts.request(http.MethodGet, "/api/brands", ts.token(t, 1), ""))
	assert.Equal(t, float64(2), admin["count"])

	user := decode(t, ts.request(http.MethodGet, "/api/brands", ts.token(t, 2), ""))
	assert.Equal(t, float64(1), user["count"])

	idle := decode(t, ts.request(http.MethodGet, "/api/brands", ts.token(t, 3), ""))
	assert.Equal(t, float64(0), idle["count"])
}

func TestGetBrandPointedDenial(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/brands/11", ts.token(t, 2), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.CodeAccessDenied, decode(t, rec)["code"])

	rec = ts.request(http.MethodGet, "/api/brands/10", ts.token(t, 2), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginLogsUserScope(t *testing.T) {
	ts := newTestServer(t)

	body := decode(t, ts.request(http.MethodGet, "/api/reports/login-logs", ts.token(t, 2), ""))
	events := body["events"].([]any)
	summary := body["summary"].(map[string]any)

	// The listing and the summary are computed over the same scoped set.
	assert.Len(t, events, 3)
	assert.Equal(t, float64(3), summary["total_logins"])
}

func TestLoginLogsAdminSeesEverything(t *testing.T) {
	ts := newTestServer(t)

	body := decode(t, ts.request(http.MethodGet, "/api/reports/login-logs", ts.token(t, 1), ""))
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(6), summary["total_logins"])
}

func TestLoginLogsForeignBrandFilterIsEmpty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/reports/login-logs?brand_id=11", ts.token(t, 2), "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(0), summary["total_logins"])
}

func TestLoginLogsDateValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/reports/login-logs?start_date=03-01-2026", ts.token(t, 1), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeValidation, decode(t, rec)["code"])

	rec = ts.request(http.MethodGet,
		"/api/reports/login-logs?start_date=2026-03-10&end_date=2026-03-01", ts.token(t, 1), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrandSummaryScoped(t *testing.T) {
	ts := newTestServer(t)

	body := decode(t, ts.request(http.MethodGet, "/api/reports/brand-summary", ts.token(t, 2), ""))
	brands := body["brands"].([]any)
	require.Len(t, brands, 1)
	row := brands[0].(map[string]any)
	assert.Equal(t, "Acme", row["brand_name"])
	assert.Equal(t, float64(3), row["total_logins"])
}

func TestAllocateDuplicateConflict(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodPost, "/api/allocations", ts.token(t, 1),
		`{"user_id":2,"brand_id":10}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeConflict, decode(t, rec)["code"])
}

func TestAllocationGrantsAndRevokesVisibility(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.token(t, 1)
	userToken := ts.token(t, 2)

	// Grant Bolt: the user's next request sees both brands' events.
	rec := ts.request(http.MethodPost, "/api/allocations", adminToken,
		`{"user_id":2,"brand_id":11}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, ts.request(http.MethodGet, "/api/reports/login-logs", userToken, ""))
	assert.Equal(t, float64(5), body["summary"].(map[string]any)["total_logins"])

	// Revoke Acme: takes effect immediately, same token.
	rec = ts.request(http.MethodDelete, "/api/allocations/2/10", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body = decode(t, ts.request(http.MethodGet, "/api/reports/login-logs", userToken, ""))
	assert.Equal(t, float64(2), body["summary"].(map[string]any)["total_logins"])
}

func TestDeleteBrandCascades(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodDelete, "/api/brands/10", ts.token(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The allocation went with the brand; the user is back to nothing.
	body := decode(t, ts.request(http.MethodGet, "/api/reports/login-logs", ts.token(t, 2), ""))
	assert.Equal(t, float64(0), body["summary"].(map[string]any)["total_logins"])
}

func TestExportAllUserScope(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/reports/export", ts.token(t, 2), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	// Header plus the three Acme rows.
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Brand Name")
}

func TestExportBrandPointedDenial(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/brands/11/export", ts.token(t, 2), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.CodeAccessDenied, decode(t, rec)["code"])
}

func TestExportBrandEmptyRangeIsHeaderOnly(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet,
		"/api/brands/10/export?start_date=2027-01-01&end_date=2027-12-31", ts.token(t, 2), "")
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 1)
}

func TestExportMineUsesOwnAllocationsForAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/reports/export/mine", ts.token(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The admin is allocated Acme only: three rows, not all six.
	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/users", ts.token(t, 2), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body := decode(t, ts.request(http.MethodGet, "/api/users", ts.token(t, 1), ""))
	assert.Equal(t, float64(3), body["count"])
}

func TestGetUserSelfOrAdmin(t *testing.T) {
	ts := newTestServer(t)

	// Self is fine.
	rec := ts.request(http.MethodGet, "/api/users/2", ts.token(t, 2), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user is not.
	rec = ts.request(http.MethodGet, "/api/users/3", ts.token(t, 2), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin may look at anyone.
	rec = ts.request(http.MethodGet, fmt.Sprintf("/api/users/%d", 3), ts.token(t, 1), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMyBrands(t *testing.T) {
	ts := newTestServer(t)

	body := decode(t, ts.request(http.MethodGet, "/api/users/me/brands", ts.token(t, 2), ""))
	assert.Equal(t, float64(1), body["count"])
}

func TestCreateBrandValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodPost, "/api/brands", ts.token(t, 1),
		`{"name":"","master_outlet_id":"MO-C"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(http.MethodPost, "/api/brands", ts.token(t, 1),
		`{"name":"Crate","master_outlet_id":"MO-C"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Brand names are unique.
	rec = ts.request(http.MethodPost, "/api/brands", ts.token(t, 1),
		`{"name":"Crate","master_outlet_id":"MO-D"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
