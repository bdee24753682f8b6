package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okatkov/partyline/backend/model"
	"github.com/okatkov/partyline/backend/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *memory.MemStore) {
	t.Helper()
	logger := zerolog.Nop()
	ms := memory.NewMemStore(6)
	return NewServer(Config{
		Logger:        &logger,
		RoomDirectory: ms,
		ListenAddr:    ":0",
	}), ms
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoomInfo(t *testing.T) {
	srv, ms := newTestServer(t)
	code, room := ms.CreateRoom()
	room.AddPlayer("a")
	room.AddPlayer("b")
	room.SetWishlist([]json.RawMessage{json.RawMessage(`"socks"`)})

	// codes are case-folded on the way in
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/room/"+strings.ToLower(code), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenericResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "OK", resp.Message)

	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var info model.RoomInfo
	require.NoError(t, json.Unmarshal(b, &info))
	assert.Equal(t, code, info.Code)
	assert.Equal(t, 2, info.Members)
	assert.Equal(t, 1, info.WishlistItems)
}

func TestRoomInfoNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/room/NOSUCH", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp GenericResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/room/ABCDEF", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
