package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukehurtiu/community-classes-api/internal/middleware"
	"github.com/lukehurtiu/community-classes-api/internal/models"
	"github.com/lukehurtiu/community-classes-api/internal/service"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
)

type classServiceMock struct {
	createResp    *models.CommunityClass
	createErr     error
	listResp      []models.CommunityClass
	listErr       error
	viewsResp     []models.MemberClassView
	viewsErr      error
	lastCreatedBy string
	lastMemberID  string
	createCalled  bool
}

func (m *classServiceMock) Create(_ context.Context, _ service.CreateClassRequest, createdBy string) (*models.CommunityClass, error) {
	m.createCalled = true
	m.lastCreatedBy = createdBy
	return m.createResp, m.createErr
}

func (m *classServiceMock) List(_ context.Context) ([]models.CommunityClass, error) {
	return m.listResp, m.listErr
}

func (m *classServiceMock) ListForMember(_ context.Context, memberID string) ([]models.MemberClassView, error) {
	m.lastMemberID = memberID
	return m.viewsResp, m.viewsErr
}

type rosterServiceMock struct {
	export     *service.RosterExport
	err        error
	lastFormat string
}

func (m *rosterServiceMock) Export(_ context.Context, _ string, format string) (*service.RosterExport, error) {
	m.lastFormat = format
	return m.export, m.err
}

func testContext(t *testing.T, method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBufferString("")
	} else {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestClassHandlerCreate(t *testing.T) {
	mockSvc := &classServiceMock{createResp: &models.CommunityClass{
		ID:       "c1",
		Title:    "Yoga",
		Capacity: 20,
	}}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	body := `{"title":"Yoga","description":"Morning yoga","instructor_name":"Sam","location":"Hall A","starts_at":"2026-09-01T09:00:00Z","capacity":20}`
	c, w := testContext(t, http.MethodPost, "/admin/classes", body, adminClaims())
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
	assert.Equal(t, "admin-1", mockSvc.lastCreatedBy)
}

func TestClassHandlerCreateValidationError(t *testing.T) {
	mockSvc := &classServiceMock{createErr: appErrors.Clone(appErrors.ErrValidation, "capacity must be between 1 and 1000")}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	body := `{"title":"Yoga","description":"d","instructor_name":"Sam","location":"Hall A","starts_at":"2026-09-01T09:00:00Z","capacity":0}`
	c, w := testContext(t, http.MethodPost, "/admin/classes", body, adminClaims())
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestClassHandlerCreateBadBody(t *testing.T) {
	handler := NewClassHandler(&classServiceMock{}, &rosterServiceMock{})

	c, w := testContext(t, http.MethodPost, "/admin/classes", `{"title":`, adminClaims())
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassHandlerAdminList(t *testing.T) {
	mockSvc := &classServiceMock{listResp: []models.CommunityClass{
		{ID: "c1", Title: "Yoga", StartsAt: time.Now().UTC()},
	}}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	c, w := testContext(t, http.MethodGet, "/admin/classes", "", adminClaims())
	handler.AdminList(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.CommunityClass `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Yoga", envelope.Data[0].Title)
}

func TestClassHandlerMemberList(t *testing.T) {
	mockSvc := &classServiceMock{viewsResp: []models.MemberClassView{
		{CommunityClass: models.CommunityClass{ID: "c1", Capacity: 10}, RegistrationCount: 4, IsRegistered: true},
	}}
	handler := NewClassHandler(mockSvc, &rosterServiceMock{})

	c, w := testContext(t, http.MethodGet, "/classes", "", &models.JWTClaims{UserID: "m1", Role: models.RoleMember})
	handler.MemberList(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m1", mockSvc.lastMemberID)
	assert.Contains(t, w.Body.String(), `"is_registered":true`)
}

func TestClassHandlerMemberListNoClaims(t *testing.T) {
	handler := NewClassHandler(&classServiceMock{}, &rosterServiceMock{})

	c, w := testContext(t, http.MethodGet, "/classes", "", nil)
	handler.MemberList(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClassHandlerExportRoster(t *testing.T) {
	mockRoster := &rosterServiceMock{export: &service.RosterExport{
		Content:     []byte("Member,Email,Registered At\n"),
		ContentType: "text/csv",
		Filename:    "roster-c1.csv",
	}}
	handler := NewClassHandler(&classServiceMock{}, mockRoster)

	c, w := testContext(t, http.MethodGet, "/admin/classes/c1/roster/export", "", adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.ExportRoster(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockRoster.lastFormat)
	assert.Equal(t, `attachment; filename="roster-c1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Member,Email")
}

func TestClassHandlerExportRosterNotFound(t *testing.T) {
	mockRoster := &rosterServiceMock{err: appErrors.ErrClassNotFound}
	handler := NewClassHandler(&classServiceMock{}, mockRoster)

	c, w := testContext(t, http.MethodGet, "/admin/classes/missing/roster/export", "", adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.ExportRoster(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
