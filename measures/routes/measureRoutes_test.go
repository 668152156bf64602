package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"meter-reading-backend/config"
	"meter-reading-backend/measures/repositories"
	"meter-reading-backend/measures/requests"
	"meter-reading-backend/measures/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubExtractor struct {
	value string
}

func (e *stubExtractor) ExtractReading(_ context.Context, _ []byte, _ string) (string, error) {
	return e.value, nil
}

type stubImageStore struct {
	keys []string
}

func (s *stubImageStore) Upload(_ context.Context, _ []byte, key string) (string, error) {
	s.keys = append(s.keys, key)
	return "https://account-imgs.s3.us-east-1.amazonaws.com/" + key, nil
}

func newTestApp(t *testing.T) (*fiber.App, *stubImageStore) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.MigrateDatabase(db))

	store := &stubImageStore{}
	repo := repositories.NewMeasureRepository(db)
	service := services.NewMeasureService(repo, &stubExtractor{value: "1234"}, store, nil, nil)

	app := fiber.New()
	MeasureRouterInit(app, db, service)
	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeError(t *testing.T, data []byte) requests.ErrorResponse {
	t.Helper()
	var out requests.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func uploadBody() map[string]interface{} {
	return map[string]interface{}{
		"image":            "base64image",
		"customer_code":    "123",
		"measure_datetime": "2024-08-30T19:00:00Z",
		"measure_type":     "WATER",
	}
}

func TestUploadListConfirmFlow(t *testing.T) {
	app, store := newTestApp(t)

	status, data := doJSON(t, app, http.MethodPost, "/upload", uploadBody())
	require.Equal(t, http.StatusOK, status, string(data))

	var uploaded requests.UploadMeasureResponse
	require.NoError(t, json.Unmarshal(data, &uploaded))
	assert.Equal(t, "1234", uploaded.MeasureValue)
	_, err := uuid.Parse(uploaded.MeasureUUID)
	require.NoError(t, err)
	assert.Equal(t, "https://account-imgs.s3.us-east-1.amazonaws.com/123/"+uploaded.MeasureUUID+".jpg", uploaded.ImageURL)
	assert.Len(t, store.keys, 1)

	status, data = doJSON(t, app, http.MethodGet, "/123/list", nil)
	require.Equal(t, http.StatusOK, status, string(data))
	var list requests.ListMeasuresResponse
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, "123", list.CustomerCode)
	require.Len(t, list.Measures, 1)
	assert.Equal(t, uploaded.MeasureUUID, list.Measures[0].MeasureUUID)
	assert.Equal(t, "2024-08-30T19:00:00.000Z", list.Measures[0].MeasureDatetime)
	assert.Equal(t, "WATER", list.Measures[0].MeasureType)
	assert.False(t, list.Measures[0].HasConfirmed)
	assert.Equal(t, uploaded.ImageURL, list.Measures[0].ImageURL)

	status, data = doJSON(t, app, http.MethodPatch, "/confirm",
		fmt.Sprintf(`{"measure_uuid":%q,"confirmed_value":456}`, uploaded.MeasureUUID))
	require.Equal(t, http.StatusOK, status, string(data))
	assert.JSONEq(t, `{"success":true}`, string(data))

	status, data = doJSON(t, app, http.MethodGet, "/123/list", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Measures, 1)
	assert.True(t, list.Measures[0].HasConfirmed)
}

func TestUploadTwiceInSameMonthIsDoubleReport(t *testing.T) {
	app, store := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/upload", uploadBody())
	require.Equal(t, http.StatusOK, status)

	second := uploadBody()
	second["measure_datetime"] = "2024-08-02T08:00:00Z"
	status, data := doJSON(t, app, http.MethodPost, "/upload", second)
	assert.Equal(t, http.StatusConflict, status)
	body := decodeError(t, data)
	assert.Equal(t, "DOUBLE_REPORT", body.ErrorCode)
	assert.Equal(t, "Reading for this month has already been taken", body.ErrorDescription)
	assert.Len(t, store.keys, 1)
}

func TestUploadInvalidData(t *testing.T) {
	app, store := newTestApp(t)

	for _, field := range []string{"image", "customer_code", "measure_datetime", "measure_type"} {
		t.Run("missing "+field, func(t *testing.T) {
			body := uploadBody()
			delete(body, field)
			status, data := doJSON(t, app, http.MethodPost, "/upload", body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "INVALID_DATA", decodeError(t, data).ErrorCode)
		})
	}

	t.Run("numeric customer_code", func(t *testing.T) {
		body := uploadBody()
		body["customer_code"] = 123
		status, data := doJSON(t, app, http.MethodPost, "/upload", body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_DATA", decodeError(t, data).ErrorCode)
	})

	t.Run("malformed json", func(t *testing.T) {
		status, data := doJSON(t, app, http.MethodPost, "/upload", `{"image":`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_DATA", decodeError(t, data).ErrorCode)
	})

	assert.Empty(t, store.keys)
}

func TestConfirmErrors(t *testing.T) {
	app, _ := newTestApp(t)

	status, data := doJSON(t, app, http.MethodPatch, "/confirm",
		fmt.Sprintf(`{"measure_uuid":%q,"confirmed_value":10}`, uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MEASURE_NOT_FOUND", decodeError(t, data).ErrorCode)

	status, data = doJSON(t, app, http.MethodPatch, "/confirm",
		fmt.Sprintf(`{"measure_uuid":%q,"confirmed_value":"10"}`, uuid.NewString()))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_DATA", decodeError(t, data).ErrorCode)

	status, data = doJSON(t, app, http.MethodPatch, "/confirm", `{"measure_uuid":"invalid-uuid","confirmed_value":456}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MEASURE_NOT_FOUND", decodeError(t, data).ErrorCode)

	status, data = doJSON(t, app, http.MethodPatch, "/confirm", `{"measure_uuid":"","confirmed_value":456}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_DATA", decodeError(t, data).ErrorCode)

	status, data = doJSON(t, app, http.MethodPost, "/upload", uploadBody())
	require.Equal(t, http.StatusOK, status)
	var uploaded requests.UploadMeasureResponse
	require.NoError(t, json.Unmarshal(data, &uploaded))

	confirm := fmt.Sprintf(`{"measure_uuid":%q,"confirmed_value":456}`, uploaded.MeasureUUID)
	status, _ = doJSON(t, app, http.MethodPatch, "/confirm", confirm)
	require.Equal(t, http.StatusOK, status)

	status, data = doJSON(t, app, http.MethodPatch, "/confirm", confirm)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFIRMATION_DUPLICATE", decodeError(t, data).ErrorCode)
}

func TestListErrorsAndFilter(t *testing.T) {
	app, _ := newTestApp(t)

	status, data := doJSON(t, app, http.MethodGet, "/123/list?measure_type=INVALID", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_TYPE", decodeError(t, data).ErrorCode)

	status, data = doJSON(t, app, http.MethodGet, "/123/list", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MEASURES_NOT_FOUND", decodeError(t, data).ErrorCode)

	status, _ = doJSON(t, app, http.MethodPost, "/upload", uploadBody())
	require.Equal(t, http.StatusOK, status)
	gas := uploadBody()
	gas["measure_type"] = "GAS"
	status, _ = doJSON(t, app, http.MethodPost, "/upload", gas)
	require.Equal(t, http.StatusOK, status)

	status, data = doJSON(t, app, http.MethodGet, "/123/list?measure_type=water", nil)
	require.Equal(t, http.StatusOK, status)
	var list requests.ListMeasuresResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Measures, 1)
	assert.Equal(t, "WATER", list.Measures[0].MeasureType)
}

func TestExportMeasures(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/upload", uploadBody())
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/123/list/export", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "measures_123.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	status, data := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, string(data))
}
