package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/tour-geocompare/internal/config"
	"github.com/jengzang/tour-geocompare/internal/database"
	"github.com/jengzang/tour-geocompare/internal/geocompare"
	"github.com/jengzang/tour-geocompare/internal/handler"
	"github.com/jengzang/tour-geocompare/internal/middleware"
	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/repository"
	"github.com/jengzang/tour-geocompare/internal/service"
)

const testSecret = "router-test-secret-0123"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := database.Open(database.Config{
		Path:    filepath.Join(t.TempDir(), "tours.db"),
		Migrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tourRepo := repository.NewTourRepository(conn)
	manager := geocompare.NewManager(service.CompareStore{
		TourRepository:    tourRepo,
		GeoPartRepository: repository.NewGeoPartRepository(conn, cfg.AppFilter.RepositoryFilter()),
	}, cfg.Compare.EngineConfig())
	t.Cleanup(manager.Close)

	return SetupRouter(cfg, Handlers{
		Tour:       handler.NewTourHandler(service.NewTourService(tourRepo)),
		GeoCompare: handler.NewGeoCompareHandler(service.NewGeoCompareService(tourRepo, manager, cfg.Compare.Filter)),
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any, header ...string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func testTour(title string, startTime int64, lat float64) models.Tour {
	tour := models.Tour{Title: title, StartTime: startTime}
	for i := 0; i < 30; i++ {
		tour.Samples = append(tour.Samples, models.TourSample{
			TimeOffset: int64(i * 10),
			Latitude:   lat,
			Longitude:  11.5 + float64(i)*0.0005,
		})
	}
	return tour
}

func createTour(t *testing.T, r http.Handler, tour models.Tour, header ...string) int64 {
	t.Helper()
	code, env := do(t, r, http.MethodPost, "/api/v1/tours", tour, header...)
	require.Equal(t, http.StatusOK, code, env.Message)
	return decode[struct {
		ID int64 `json:"id"`
	}](t, env).ID
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, config.Default())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/tours", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTourEndpoints(t *testing.T) {
	r := setupRouter(t, config.Default())

	id := createTour(t, r, testTour("ride", 100, 48.1))

	code, env := do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/tours/%d", id), nil)
	require.Equal(t, http.StatusOK, code)
	tour := decode[models.Tour](t, env)
	assert.Equal(t, "ride", tour.Title)
	assert.Len(t, tour.Samples, 30)

	code, _ = do(t, r, http.MethodGet, "/api/v1/tours/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, r, http.MethodGet, "/api/v1/tours/999", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/tours", models.Tour{Title: "empty"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/tours/%d", id), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/tours/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGeoCompareEndpoints(t *testing.T) {
	r := setupRouter(t, config.Default())

	ref := createTour(t, r, testTour("reference", 100, 48.1))
	createTour(t, r, testTour("same", 200, 48.1))
	createTour(t, r, testTour("near", 300, 48.1012))

	code, env := do(t, r, http.MethodPost, "/api/v1/geocompare", gin.H{
		"tourId":     ref,
		"firstIndex": 0,
		"lastIndex":  29,
	})
	require.Equal(t, http.StatusAccepted, code, env.Message)
	status := decode[models.GeoCompareStatus](t, env)
	require.NotEmpty(t, status.ID)
	base := "/api/v1/geocompare/" + status.ID

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base, nil))
		var env struct {
			Data models.GeoCompareStatus `json:"data"`
		}
		return w.Code == http.StatusOK && json.Unmarshal(w.Body.Bytes(), &env) == nil && env.Data.State == "done"
	}, 5*time.Second, 10*time.Millisecond)

	code, env = do(t, r, http.MethodGet, base+"/results", nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[geocompare.FilteredView](t, env)
	require.Len(t, view.Entries, 3)
	assert.Equal(t, ref, view.Entries[0].Tour.TourID)
	assert.Equal(t, models.ValidMatch(0), view.Entries[0].Tour.BestMatch)
	assert.Empty(t, view.Entries[0].Tour.DiffCurve)

	code, env = do(t, r, http.MethodGet, base+"/results?maxResults=1&withCurve=true", nil)
	require.Equal(t, http.StatusOK, code)
	view = decode[geocompare.FilteredView](t, env)
	require.Len(t, view.Entries, 1)
	assert.NotEmpty(t, view.Entries[0].Tour.DiffCurve)

	code, env = do(t, r, http.MethodGet, base+"/results?maxDiffPercent=50", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[geocompare.FilteredView](t, env).Entries, 2)

	code, _ = do(t, r, http.MethodGet, base+"/results?maxDiffPercent=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, r, http.MethodGet, base+"/results?maxDiffPercent=120", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", decode[models.GeoCompareStatus](t, env).State)

	code, _ = do(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, r, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGeoCompareStartErrors(t *testing.T) {
	r := setupRouter(t, config.Default())
	ref := createTour(t, r, testTour("reference", 100, 48.1))

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing tour", gin.H{"firstIndex": 0, "lastIndex": 3}, http.StatusBadRequest},
		{"reversed range", gin.H{"tourId": ref, "firstIndex": 5, "lastIndex": 3}, http.StatusBadRequest},
		{"range past the end", gin.H{"tourId": ref, "firstIndex": 0, "lastIndex": 30}, http.StatusBadRequest},
		{"single sample", gin.H{"tourId": ref, "firstIndex": 3, "lastIndex": 3}, http.StatusBadRequest},
		{"unknown tour", gin.H{"tourId": 999, "firstIndex": 0, "lastIndex": 3}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(t, r, http.MethodPost, "/api/v1/geocompare", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestGeoCompareRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Requests = 1
	r := setupRouter(t, cfg)
	ref := createTour(t, r, testTour("reference", 100, 48.1))

	body := gin.H{"tourId": ref, "firstIndex": 0, "lastIndex": 29}
	code, _ := do(t, r, http.MethodPost, "/api/v1/geocompare", body)
	assert.Equal(t, http.StatusAccepted, code)
	code, _ = do(t, r, http.MethodPost, "/api/v1/geocompare", body)
	assert.Equal(t, http.StatusTooManyRequests, code)

	// Reads are not limited
	code, _ = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/tours/%d", ref), nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAuthEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Auth = config.AuthConfig{Enabled: true, JWTSecret: testSecret}
	r := setupRouter(t, cfg)

	code, _ := do(t, r, http.MethodGet, "/api/v1/tours/1", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token, err := middleware.IssueToken(testSecret, "tester", time.Hour)
	require.NoError(t, err)
	auth := []string{"Authorization", "Bearer " + token}

	id := createTour(t, r, testTour("ride", 100, 48.1), auth...)
	code, _ = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/tours/%d", id), nil, auth...)
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
