package main

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/Exanteros/darts-sub002/internal/notify"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func (app *application) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(app.cfg.CORSOrigins, "*") || slices.Contains(app.cfg.CORSOrigins, origin)
		},
	}
}

func (app *application) serveRoom(w http.ResponseWriter, r *http.Request, room func(uuid.UUID) string) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	conn, err := app.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := notify.NewClient(app.hub, conn, room(id))
	app.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (app *application) serveTournamentWS(w http.ResponseWriter, r *http.Request) {
	app.serveRoom(w, r, notify.TournamentRoom)
}

func (app *application) serveBoardWS(w http.ResponseWriter, r *http.Request) {
	app.serveRoom(w, r, notify.BoardRoom)
}
