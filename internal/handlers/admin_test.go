package handlers_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"smile-preview-backend/internal/handlers"
	"smile-preview-backend/internal/leads"
	"smile-preview-backend/internal/middleware"
	"smile-preview-backend/internal/models"
)

const adminSecret = "admin-secret-for-tests"

func newAdminServer(t *testing.T, store *memLeads) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	h := handlers.NewAdminHandler(leads.NewService(store, zerolog.Nop()), handlers.AdminCredentials{
		Username:     "admin",
		PasswordHash: string(hash),
		JWTSecret:    adminSecret,
		TokenTTL:     time.Hour,
	}, zerolog.Nop())

	router := gin.New()
	router.POST("/api/v1/admin/login", h.Login)
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AdminAuth(adminSecret))
	admin.GET("/leads", h.ListLeads)
	admin.GET("/leads/export", h.ExportLeads)
	admin.DELETE("/leads", h.ClearLeads)

	return &server{router: router, store: store}
}

func (s *server) authed(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return s.do(t, req)
}

func login(t *testing.T, srv *server) string {
	t.Helper()
	w := srv.json(t, "POST", "/api/v1/admin/login", models.AdminLoginRequest{Username: "admin", Password: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.AdminLoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func seededLeads() *memLeads {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &memLeads{subs: []leads.Submission{
		{Timestamp: t0, Name: "Old", Phone: "+1 5551234567", FreeTreatment: true, SelectedToothType: "Natural", SelectedToothColor: "Extra White (BL1)"},
		{Timestamp: t0.Add(time.Hour), Name: "New", Phone: "+44 7700900123", SelectedToothType: "Oval", SelectedToothColor: "Natural (A1)", OutputImgURL: "https://cdn.test/x.png"},
	}}
}

func TestAdmin_LoginRejectsBadPassword(t *testing.T) {
	srv := newAdminServer(t, &memLeads{})

	w := srv.json(t, "POST", "/api/v1/admin/login", models.AdminLoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.json(t, "POST", "/api/v1/admin/login", models.AdminLoginRequest{Username: "root", Password: "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_LoginNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handlers.NewAdminHandler(&memLeads{}, handlers.AdminCredentials{Username: "admin"}, zerolog.Nop())
	router := gin.New()
	router.POST("/login", h.Login)
	srv := &server{router: router}

	w := srv.json(t, "POST", "/login", models.AdminLoginRequest{Username: "admin", Password: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdmin_ListNewestFirst(t *testing.T) {
	srv := newAdminServer(t, seededLeads())

	w := srv.json(t, "GET", "/api/v1/admin/leads", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.authed(t, "GET", "/api/v1/admin/leads", login(t, srv))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LeadListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "New", resp.Leads[0].Name)
	assert.Equal(t, "Old", resp.Leads[1].Name)
	assert.Contains(t, w.Body.String(), `"selectedToothType"`)
}

func TestAdmin_ExportCSV(t *testing.T) {
	srv := newAdminServer(t, seededLeads())
	token := login(t, srv)

	w := srv.authed(t, "GET", "/api/v1/admin/leads/export", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "design-your-teeth-submissions-")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "FREE TREATMENT", rows[0][4])
	assert.Equal(t, "New", rows[1][1])
	assert.Equal(t, "No", rows[1][4])
	assert.Equal(t, "Yes", rows[2][4])
}

func TestAdmin_ExportJSONAndBadFormat(t *testing.T) {
	srv := newAdminServer(t, seededLeads())
	token := login(t, srv)

	w := srv.authed(t, "GET", "/api/v1/admin/leads/export?format=json", token)
	require.Equal(t, http.StatusOK, w.Code)
	var subs []leads.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
	assert.Len(t, subs, 2)

	w = srv.authed(t, "GET", "/api/v1/admin/leads/export?format=xml", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_Clear(t *testing.T) {
	store := seededLeads()
	srv := newAdminServer(t, store)

	w := srv.authed(t, "DELETE", "/api/v1/admin/leads", login(t, srv))
	assert.Equal(t, http.StatusNoContent, w.Code)

	subs, _ := store.List(context.Background())
	assert.Empty(t, subs)
}
