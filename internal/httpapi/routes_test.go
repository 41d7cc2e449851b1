package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/fightclub-backend/internal/hub"
	"github.com/DoyleJ11/fightclub-backend/internal/room"
	"github.com/DoyleJ11/fightclub-backend/internal/types"
)

type failingRooms struct{}

func (failingRooms) Create(context.Context) (string, *room.Room, error) {
	return "", nil, errors.New("boom")
}

func (failingRooms) ListOpen(context.Context) ([]string, error) {
	return nil, hub.ErrHubClosed
}

func newRouter(t *testing.T, rooms Rooms) http.Handler {
	t.Helper()
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	return SetupRoutes(rooms, ws, zaptest.NewLogger(t))
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes_CreateThenList(t *testing.T) {
	h := hub.NewHub(context.Background(), room.Options{Logger: zaptest.NewLogger(t)})
	t.Cleanup(h.Shutdown)
	router := newRouter(t, h)

	rec := do(t, router, http.MethodGet, "/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rooms":[]}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/rooms")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var created struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Code, 6)

	rec = do(t, router, http.MethodGet, "/rooms")
	var list types.RoomList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{created.Code}, list.Rooms)
}

func TestRoutes_Errors(t *testing.T) {
	router := newRouter(t, failingRooms{})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/rooms", http.StatusInternalServerError},
		{http.MethodGet, "/rooms", http.StatusServiceUnavailable},
		{http.MethodDelete, "/rooms", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodGet, "/ws", http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, router, tt.method, tt.path).Code)
		})
	}
}
