package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arthurdotwork/relay/internal/adapters/primary/httpapi"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/store"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/stretchr/testify/require"
)

type nopMessenger struct{ id int }

func (nopMessenger) Send(context.Context, domain.Outbound) error { return nil }
func (nopMessenger) Close(string) error                         { return nil }

func TestRoutes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	rooms := domain.NewRoomManager()
	registry := domain.NewRegistry(store.NewMemoryConnectionStore(), rooms, nil)

	for i, id := range []string{"c1", "c2", "c3"} {
		c := domain.NewConnection(id, &nopMessenger{id: i})
		_, err := registry.Register(ctx, c)
		require.NoError(t, err)
		if id != "c3" {
			_, err = rooms.Join(ctx, c, "P1")
			require.NoError(t, err)
		}
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	mux := httpapi.Routes("node-a", http.NotFoundHandler(), rooms, registry, metrics)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{name: "health", path: "/health", wantCode: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "stats", path: "/stats", wantCode: http.StatusOK, wantBody: `{"nodeId":"node-a","connections":3,"rooms":1,"members":2}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantCode, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, "# metrics", rec.Body.String())
	})
}
