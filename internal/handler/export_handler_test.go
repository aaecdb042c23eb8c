package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlms/announce-api/internal/models"
	"github.com/lumenlms/announce-api/internal/service"
	appErrors "github.com/lumenlms/announce-api/pkg/errors"
)

type exportServiceMock struct {
	createResp   *service.ExportJobResponse
	createErr    error
	lastFormat   models.ExportFormat
	statusResp   *service.ExportJobResponse
	statusErr    error
	downloadResp *service.ExportDownload
	downloadErr  error
}

func (m *exportServiceMock) CreateJob(ctx context.Context, announcementID string, format models.ExportFormat, actor *models.JWTClaims) (*service.ExportJobResponse, error) {
	m.lastFormat = format
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*service.ExportJobResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.downloadResp, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	mockSvc := &exportServiceMock{
		createResp: &service.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued},
	}
	handler := NewExportHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/announcements/a1/export", []byte(`{"format":"CSV"}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.CreateExport(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ExportFormatCSV, mockSvc.lastFormat)

	var envelope struct {
		Data service.ExportJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data.ID)
}

func TestExportHandlerCreateInvalidBody(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{})

	c, w := testContext(t, http.MethodPost, "/announcements/a1/export", []byte(`{"format":`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.CreateExport(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerStatusForbidden(t *testing.T) {
	mockSvc := &exportServiceMock{statusErr: appErrors.ErrForbidden}
	handler := NewExportHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Status(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownloadInvalidToken(t *testing.T) {
	mockSvc := &exportServiceMock{downloadErr: appErrors.ErrForbidden}
	handler := NewExportHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/export/bad-token", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad-token"}}
	handler.Download(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}
