package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/arthurdotwork/relay/internal/domain"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type RoomStats interface {
	Stats() (rooms, members int)
}

type ConnectionLister interface {
	Connections(ctx context.Context) ([]*domain.Connection, error)
}

type Stats struct {
	NodeID      string `json:"nodeId"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
	Members     int    `json:"members"`
}

// Routes mounts the WebSocket endpoint next to the operational endpoints.
func Routes(nodeID string, ws http.Handler, rooms RoomStats, conns ConnectionLister, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(nodeID, rooms, conns))
	mux.Handle("/metrics", metrics)

	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func statsHandler(nodeID string, rooms RoomStats, conns ConnectionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connections, err := conns.Connections(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "error listing connections", "error", err)
			writeJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"error": "internal"})
			return
		}

		roomCount, members := rooms.Stats()
		writeJSON(r.Context(), w, http.StatusOK, Stats{
			NodeID:      nodeID,
			Connections: len(connections),
			Rooms:       roomCount,
			Members:     members,
		})
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.DebugContext(ctx, "error writing response", "error", err)
	}
}
