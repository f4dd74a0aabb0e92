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
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
)

type admissionServiceMock struct {
	reg          *models.Registration
	err          error
	lastClassID  string
	lastMemberID string
	called       bool
}

func (m *admissionServiceMock) Admit(_ context.Context, classID, memberID string) (*models.Registration, error) {
	m.called = true
	m.lastClassID = classID
	m.lastMemberID = memberID
	return m.reg, m.err
}

func registrationContext(t *testing.T, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestRegistrationHandlerCreate(t *testing.T) {
	mockSvc := &admissionServiceMock{reg: &models.Registration{
		ID:        "r1",
		ClassID:   "c1",
		MemberID:  "m1",
		CreatedAt: time.Now().UTC(),
	}}
	handler := NewRegistrationHandler(mockSvc)

	c, w := registrationContext(t, `{"class_id":"c1"}`, &models.JWTClaims{UserID: "m1", Role: models.RoleMember})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.called)
	assert.Equal(t, "c1", mockSvc.lastClassID)
	assert.Equal(t, "m1", mockSvc.lastMemberID)

	var envelope struct {
		Data models.Registration `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "r1", envelope.Data.ID)
}

func TestRegistrationHandlerCreateMissingClassID(t *testing.T) {
	mockSvc := &admissionServiceMock{}
	handler := NewRegistrationHandler(mockSvc)

	c, w := registrationContext(t, `{}`, &models.JWTClaims{UserID: "m1", Role: models.RoleMember})
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}

func TestRegistrationHandlerCreateNoClaims(t *testing.T) {
	handler := NewRegistrationHandler(&admissionServiceMock{})

	c, w := registrationContext(t, `{"class_id":"c1"}`, nil)
	handler.Create(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationHandlerCreateClassFull(t *testing.T) {
	mockSvc := &admissionServiceMock{err: appErrors.ErrClassFull}
	handler := NewRegistrationHandler(mockSvc)

	c, w := registrationContext(t, `{"class_id":"c1"}`, &models.JWTClaims{UserID: "m1", Role: models.RoleMember})
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CLASS_FULL")
}

func TestRegistrationHandlerCreateAlreadyRegistered(t *testing.T) {
	mockSvc := &admissionServiceMock{err: appErrors.ErrAlreadyRegistered}
	handler := NewRegistrationHandler(mockSvc)

	c, w := registrationContext(t, `{"class_id":"c1"}`, &models.JWTClaims{UserID: "m1", Role: models.RoleMember})
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_REGISTERED")
}

func TestRegistrationHandlerCreateClassNotFound(t *testing.T) {
	mockSvc := &admissionServiceMock{err: appErrors.ErrClassNotFound}
	handler := NewRegistrationHandler(mockSvc)

	c, w := registrationContext(t, `{"class_id":"missing"}`, &models.JWTClaims{UserID: "m1", Role: models.RoleMember})
	handler.Create(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CLASS_NOT_FOUND")
}
