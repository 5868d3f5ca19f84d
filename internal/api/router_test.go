package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_reservation/internal/api/middleware"
	"parking_reservation/internal/config"
	"parking_reservation/internal/domain"
	"parking_reservation/internal/repository/sqlrepo"
	"parking_reservation/internal/service"
)

type testServer struct {
	router *gin.Engine
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlrepo.NewDB(&config.Config{
		DBDriver:          config.DriverSQLite,
		DBPath:            filepath.Join(t.TempDir(), "api-test.db"),
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    5,
		DBConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	ts := &testServer{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}

	userRepo := sqlrepo.NewUserRepository(db)
	authService := service.NewAuthService(userRepo, "api-test-secret-with-at-least-32-bytes", time.Hour)
	parkingService := service.NewParkingService(
		sqlrepo.NewParkingLotRepository(db),
		sqlrepo.NewParkingSpotRepository(db),
		sqlrepo.NewReservationRepository(db),
		userRepo,
	).WithClock(func() time.Time { return ts.now })

	_, err = authService.EnsureAdmin(context.Background(), "admin", "admin@example.com", "admin-password")
	require.NoError(t, err)

	ts.router = SetupRouter(authService, parkingService, middleware.NewAuthMiddleware(authService), db)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/auth/login", "", domain.LoginUserDTO{Username: username, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp domain.AuthResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouter_ReservationFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/auth/register", "", domain.RegisterUserDTO{Username: "alice", Email: "alice@example.com", Password: "alice-password"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	w = ts.do(t, http.MethodPost, "/auth/register", "", domain.RegisterUserDTO{Username: "alice", Email: "x@example.com", Password: "alice-password"})
	assert.Equal(t, http.StatusConflict, w.Code)

	adminToken := ts.login(t, "admin", "admin-password")
	userToken := ts.login(t, "alice", "alice-password")

	lotBody := domain.ParkingLotDTO{Name: "Station", Price: 10, Address: "2 Rail Way", PostalCode: "400001", MaxSpots: 2}
	w = ts.do(t, http.MethodPost, "/api/v1/parking-lots", userToken, lotBody)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/parking-lots", adminToken, lotBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lot := decode[domain.ParkingLot](t, w)

	lotPath := "/api/v1/parking-lots/" + strconv.Itoa(lot.ID)
	w = ts.do(t, http.MethodPost, lotPath+"/reservations", userToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[domain.ReservationDetail](t, w)
	assert.Equal(t, 1, first.SpotNumber)

	w = ts.do(t, http.MethodPost, lotPath+"/reservations", userToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, lotPath+"/reservations", userToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, lotPath+"/spots", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	spots := decode[[]domain.SpotView](t, w)
	require.Len(t, spots, 2)
	assert.Equal(t, "alice", spots[0].Username.String)

	ts.now = ts.now.Add(90 * time.Minute)
	reservationPath := "/api/v1/reservations/" + strconv.Itoa(first.ID)
	w = ts.do(t, http.MethodGet, reservationPath, userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20.0, decode[domain.ReservationDetail](t, w).EstimatedCost)
	w = ts.do(t, http.MethodGet, reservationPath, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	releasePath := "/api/v1/reservations/" + strconv.Itoa(first.ID) + "/release"
	w = ts.do(t, http.MethodPost, releasePath, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "only the owner can release")

	w = ts.do(t, http.MethodPost, releasePath, userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	released := decode[domain.ReservationDetail](t, w)
	assert.Equal(t, 20.0, released.ParkingCost)
	assert.Equal(t, domain.ReservationCompleted, released.Status)

	w = ts.do(t, http.MethodPost, releasePath, userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/reservations/active", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ReservationDetail](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/v1/reservations/history?limit=1", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ReservationDetail](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/v1/reservations/history?limit=abc", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, lotPath, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "one spot still occupied")

	shrink := lotBody
	shrink.MaxSpots = 1
	w = ts.do(t, http.MethodPut, lotPath, adminToken, shrink)
	assert.Equal(t, http.StatusConflict, w.Code, "spot 2 is occupied")

	w = ts.do(t, http.MethodGet, "/api/v1/parking-lots/search?q=rail", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.LotSummary](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/v1/parking-lots/available", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	available := decode[[]domain.LotSummary](t, w)
	require.Len(t, available, 1)
	assert.Equal(t, 1, available[0].AvailableSpots)

	w = ts.do(t, http.MethodGet, "/api/v1/stats", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	userStats := decode[domain.UserBookingStats](t, w)
	assert.Equal(t, []string{"2026-06-01"}, userStats.Labels)
	assert.Equal(t, []int{2}, userStats.Bookings)

	w = ts.do(t, http.MethodGet, "/api/v1/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	occ := decode[domain.OccupancyStats](t, w)
	assert.Equal(t, []string{"Station"}, occ.Labels)
	assert.Equal(t, []int{1}, occ.Occupied)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/summary", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.AdminSummary{TotalParkingLots: 1, TotalUsers: 2, ActiveReservations: 1}, decode[domain.AdminSummary](t, w))
}

func TestRouter_AuthAndValidation(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.login(t, "admin", "admin-password")

	w := ts.do(t, http.MethodGet, "/api/v1/parking-lots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/parking-lots", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/auth/login", "", domain.LoginUserDTO{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/parking-lots", adminToken,
		domain.ParkingLotDTO{Name: "Free", Price: 0, Address: "x", PostalCode: "1", MaxSpots: 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/parking-lots/abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/parking-lots/77", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/parking-lots/77/reservations", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_UserManagement(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.login(t, "admin", "admin-password")

	w := ts.do(t, http.MethodPost, "/auth/register", "", domain.RegisterUserDTO{Username: "bob", Email: "bob@example.com", Password: "bob-password"})
	require.Equal(t, http.StatusCreated, w.Code)
	bob := decode[domain.User](t, w)
	bobToken := ts.login(t, "bob", "bob-password")

	w = ts.do(t, http.MethodGet, "/api/v1/users", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/admin/summary", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.User](t, w), 2)

	rolePath := "/api/v1/users/" + strconv.Itoa(bob.ID) + "/role"
	w = ts.do(t, http.MethodPut, rolePath, adminToken, domain.UpdateRoleDTO{Role: "superuser"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, rolePath, adminToken, domain.UpdateRoleDTO{Role: domain.RoleAdmin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[domain.User](t, w).IsAdmin())

	// role changes apply to tokens issued earlier
	w = ts.do(t, http.MethodGet, "/api/v1/users", bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPut, rolePath, adminToken, domain.UpdateRoleDTO{Role: domain.RoleUser})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/users", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodPut, rolePath, bobToken, domain.UpdateRoleDTO{Role: domain.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/users/999/role", adminToken, domain.UpdateRoleDTO{Role: domain.RoleAdmin})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(middleware.RequestIDHeader))
}
