package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/cms-timetable/internal/models"
	"github.com/noah-isme/cms-timetable/internal/service"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
	"github.com/noah-isme/cms-timetable/pkg/storage"
)

var testZone = time.FixedZone("CST", 8*3600)

func strPtr(v string) *string { return &v }

type fakeCMS struct {
	timetable models.CMSTimetable
	err       error
}

func (f *fakeCMS) Timetable(context.Context, int) (*models.CMSTimetable, []byte, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	body, err := json.Marshal(f.timetable)
	if err != nil {
		return nil, nil, err
	}
	copied := f.timetable
	return &copied, body, nil
}

func (f *fakeCMS) UserInformation(context.Context) (*models.CMSUserInformation, error) {
	return nil, appErrors.WrapAs(errors.New("dial tcp: refused"), appErrors.ErrCMSUnavailable, "")
}

func (f *fakeCMS) Assemblies(context.Context) ([]models.CMSAssembly, error) {
	return []models.CMSAssembly{}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func cmsTimetable() models.CMSTimetable {
	event := func(id uint, name string, eventType models.CMSEventType, week *string) models.CMSEvent {
		room := "R" + name[:1]
		return models.CMSEvent{ID: &id, Type: &eventType, Name: &name, Room: &room, WeekType: week}
	}
	days := make([]models.CMSWeekday, models.DaysPerWeek)
	for i := range days {
		days[i].Periods = make([]models.CMSPeriod, 6)
	}
	days[0].Periods[0].Events = []models.CMSEvent{event(1, "Math", models.CMSEventTypeLesson, nil)}
	days[0].Periods[1].Events = []models.CMSEvent{
		event(2, "Physics", models.CMSEventTypeLesson, strPtr("A")),
		event(3, "Robotics", models.CMSEventTypeECA, strPtr("B")),
	}
	return models.CMSTimetable{WeekType: models.CMSWeekTypeA, WeekAPeriods: 2, WeekBPeriods: 2, Weekdays: days}
}

type testServer struct {
	router *gin.Engine
	cms    *fakeCMS
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	normalizer, err := service.NewTimetableNormalizer(models.DefaultPeriodTable[:6].Clone())
	require.NoError(t, err)
	cms := &fakeCMS{timetable: cmsTimetable()}
	metrics := service.NewMetricsService()

	timetables := service.NewTimetableService(cms, nil, normalizer, nil, metrics, nil, service.TimetableServiceConfig{DefaultYear: 2024, Location: testZone})
	calendar := service.NewCalendarService(testZone, nil)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exports := service.NewExportService(store, storage.NewSignedURLSigner("download-secret", time.Hour), calendar, service.ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := service.NewAuthService(nil, nil, service.AuthConfig{
		Username:          "operator",
		PasswordHash:      string(hash),
		AccessTokenSecret: "jwt-secret",
		AccessTokenExpiry: time.Hour,
	})

	handlers := Handlers{
		Auth:      NewAuthHandler(auth),
		Timetable: NewTimetableHandler(timetables, calendar, exports, nil, nil, nil),
		Export:    NewExportHandler(exports),
		Profile:   NewProfileHandler(service.NewProfileService(cms, nil, testZone, nil)),
		Metrics:   NewMetricsHandler(metrics, map[string]Pinger{"redis": failingPinger{}, "postgres": nil}),
	}
	router := NewRouter(RouterConfig{APIPrefix: "/api/v1"}, handlers, auth, metrics, nil)

	srv := &testServer{router: router, cms: cms}
	w := srv.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"operator","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	srv.token = login.Data.AccessToken
	return srv
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error, w.Body.String())
	return envelope.Error.Code
}

func TestRouterRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""

	w := srv.do(t, http.MethodGet, "/api/v1/timetable", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"operator","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errorCode(t, w))
}

func TestTimetableEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/timetable?year=2024", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cms", w.Header().Get(SourceHeader))

	var body struct {
		Data struct {
			Year int         `json:"year"`
			Week models.Week `json:"week"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2024, body.Data.Year)
	assert.Equal(t, models.SlotKindSame, body.Data.Week.Days[0].Slots[0].Kind)
	assert.Equal(t, models.SlotKindDifferent, body.Data.Week.Days[0].Slots[1].Kind)
	assert.Equal(t, "Robotics", body.Data.Week.Days[0].Slots[1].WeekB.Name)

	w = srv.do(t, http.MethodGet, "/api/v1/timetable?year=1900", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableEndpointMapsNormalizationFailures(t *testing.T) {
	srv := newTestServer(t)
	srv.cms.timetable.Weekdays[1].Periods[0].Events = []models.CMSEvent{{}}

	w := srv.do(t, http.MethodGet, "/api/v1/timetable", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, appErrors.ErrTimetableInvalid.Code, errorCode(t, w))

	srv.cms.err = appErrors.WrapAs(errors.New("timeout"), appErrors.ErrCMSUnavailable, "")
	w = srv.do(t, http.MethodGet, "/api/v1/timetable", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, appErrors.ErrCMSUnavailable.Code, errorCode(t, w))
}

func TestTodayEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/timetable/today?date=2024-09-07", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"school_day":false`)

	w = srv.do(t, http.MethodGet, "/api/v1/timetable/today?date=07-09-2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOccurrencesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/timetable/occurrences?from=2024-09-02&to=2024-09-08", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data []map[string]interface{} `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	// Math every week plus one side of the paired period.
	assert.Len(t, body.Data, 2)
	assert.EqualValues(t, 2, body.Meta["count"])

	w = srv.do(t, http.MethodGet, "/api/v1/timetable/occurrences?from=2024-09-01&to=2024-12-31", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/timetable/occurrences?from=2024-09-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/timetable/calendar.ics?weeks=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Equal(t, 3, strings.Count(w.Body.String(), "BEGIN:VEVENT"))
}

func TestExportRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/timetable/exports", `{"format":"csv"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.URL)

	srv.token = ""
	w = srv.do(t, http.MethodGet, created.Data.URL, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "Physics")

	w = srv.do(t, http.MethodGet, created.Data.URL+"x", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodPost, "/api/v1/timetable/exports", `{"format":"xlsx"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAsyncRefreshDisabledWithoutScheduler(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodPost, "/api/v1/timetable/refresh?async=true", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, errorCode(t, w))

	w = srv.do(t, http.MethodPost, "/api/v1/timetable/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSnapshotsDisabledWithoutDatabase(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/api/v1/timetable/snapshots", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/profile", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, appErrors.ErrCMSUnavailable.Code, errorCode(t, w))

	w = srv.do(t, http.MethodGet, "/api/v1/assemblies", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestSystemEndpoints(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health", "").Code)

	w := srv.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.NotContains(t, w.Body.String(), "postgres")

	srv.do(t, http.MethodGet, "/api/v1/timetable", "")
	w = srv.do(t, http.MethodGet, "/api/v1/system/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "requests_total")

	w = srv.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timetable_normalizations_total")

	w = srv.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
