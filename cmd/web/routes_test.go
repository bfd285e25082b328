package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Exanteros/darts-sub002/internal/bracket"
	"github.com/Exanteros/darts-sub002/internal/config"
	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/Exanteros/darts-sub002/internal/ratelimit"
	"github.com/Exanteros/darts-sub002/internal/service"
	"github.com/Exanteros/darts-sub002/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "let-me-in-please"

func newTestApp(t *testing.T) *application {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "sqlite3", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := notify.NewHub()
	go hub.Run(ctx)

	cfg := &config.Config{
		JWTSecret:   []byte("0123456789abcdef0123"),
		TokenTTL:    time.Hour,
		CORSOrigins: []string{"*"},
	}

	stores := store.New(database)
	boards := service.NewBoardService(database, stores, hub)
	promotion := service.NewPromotion(database, stores, hub)
	generator := service.NewBracketGeneration(database, stores, promotion, hub)

	return &application{
		cfg:            cfg,
		sessionManager: scs.New(),
		adminHash:      hash,
		hub:            hub,
		boards:         boards,
		generator:      generator,
		matches:        service.NewMatchService(database, stores, boards, promotion, ratelimit.NewMemoryLimiter(10, time.Minute), hub),
		shootout:       service.NewShootoutService(database, stores, boards, generator, hub),
		tournaments:    service.NewTournamentService(database, stores, cfg.JWTSecret, cfg.TokenTTL),
	}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
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
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/admin/login", "", map[string]string{"password": testPassword})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func TestHealth(t *testing.T) {
	h := newTestApp(t).routes()

	rr := do(t, h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAdminLogin(t *testing.T) {
	h := newTestApp(t).routes()

	t.Run("wrong password", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/admin/login", "", map[string]string{"password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/admin/login", "", map[string]string{"pass": testPassword})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("sets a session cookie", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/admin/login", "", map[string]string{"password": testPassword})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Result().Cookies())
	})
}

func TestAdminRoutesNeedCredentials(t *testing.T) {
	h := newTestApp(t).routes()

	rr := do(t, h, http.MethodPost, "/api/tournaments", "", map[string]any{"name": "Friday Night"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/tournaments", "not-a-jwt", map[string]any{"name": "Friday Night"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTournamentLifecycleOverHTTP(t *testing.T) {
	h := newTestApp(t).routes()
	token := login(t, h)

	rr := do(t, h, http.MethodPost, "/api/tournaments", token, map[string]any{"name": "Friday Night"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tournament bracket.Tournament
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tournament))
	assert.Equal(t, "Friday Night", tournament.Name)

	rr = do(t, h, http.MethodGet, "/api/tournaments/"+tournament.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/tournaments/"+tournament.ID.String()+"/players", token, map[string]string{"name": "Anna"})
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/tournaments/"+tournament.ID.String()+"/players", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var players []bracket.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &players))
	require.Len(t, players, 1)
	assert.Equal(t, "Anna", players[0].Name)

	rr = do(t, h, http.MethodPost, "/api/tournaments", token, map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRoundAndBoardRoutes(t *testing.T) {
	h := newTestApp(t).routes()
	token := login(t, h)

	rr := do(t, h, http.MethodPost, "/api/tournaments", token, map[string]any{"name": "Friday Night"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tournament bracket.Tournament
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tournament))
	base := "/api/tournaments/" + tournament.ID.String()

	rr = do(t, h, http.MethodPost, base+"/rounds/1/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, base+"/rounds/first/start", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// no bracket yet
	rr = do(t, h, http.MethodPost, base+"/rounds/1/start", token, nil)
	assert.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, base+"/boards", token, map[string]any{"name": "Board 1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	code, _ := created["access_code"].(string)
	assert.Len(t, code, 12)

	rr = do(t, h, http.MethodGet, base+"/boards", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "access_code")
}

func TestRouteErrors(t *testing.T) {
	h := newTestApp(t).routes()

	rr := do(t, h, http.MethodGet, "/api/tournaments/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/tournaments/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `"error"`))
}

func TestTournamentWebsocket(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.routes())
	t.Cleanup(srv.Close)

	id := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tournaments/" + id.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool {
		return app.hub.ClientCount(notify.TournamentRoom(id)) == 1
	}, time.Second, 10*time.Millisecond)
}
