package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/middleware"
	"github.com/noah-isme/smart-report-api/internal/models"
)

const (
	testReportID = "8a1d7c3e-52b4-4f0e-9c6a-1e2f3a4b5c6d"
	testItemID   = "3c9e2b1a-7d6f-4e5c-8b4a-9f8e7d6c5b4a"
	testClassID  = "b7e6d5c4-3a2b-4c1d-9e0f-a1b2c3d4e5f6"
	testUserID   = "e4d3c2b1-a0f9-4e8d-b7c6-5a4b3c2d1e0f"
)

type testEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var payload *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		payload = bytes.NewReader(raw)
	}
	if payload != nil {
		c.Request = httptest.NewRequest(method, target, payload)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	return c, rec
}

func withPrincipal(c *gin.Context, principal *models.Principal) {
	c.Set(middleware.ContextUserKey, principal)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
