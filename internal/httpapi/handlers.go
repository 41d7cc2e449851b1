package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fightclub-backend/internal/hub"
	"github.com/DoyleJ11/fightclub-backend/internal/room"
	"github.com/DoyleJ11/fightclub-backend/internal/types"
)

// Rooms is the slice of the hub the HTTP layer needs.
type Rooms interface {
	Create(ctx context.Context) (string, *room.Room, error)
	ListOpen(ctx context.Context) ([]string, error)
}

func CreateRoom(rooms Rooms, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, _, err := rooms.Create(r.Context())
		if err != nil {
			log.Error("create room", zap.Error(err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func ListRooms(rooms Rooms, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := rooms.ListOpen(r.Context())
		if err != nil {
			log.Error("list rooms", zap.Error(err))
			http.Error(w, "failed to list rooms", http.StatusServiceUnavailable)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, types.RoomList{Rooms: ids})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ Rooms = (*hub.Hub)(nil)
