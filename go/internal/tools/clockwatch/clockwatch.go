// clockwatch is a terminal client for watching a room's clock. It
// joins a room, folds incoming deltas into a local state and free-runs
// the countdown between updates, printing the per-player displays.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clockroom/clockroom/go/internal/clock"
	"github.com/clockroom/clockroom/go/internal/relay"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	room := flag.String("room", "", "room id to watch")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *room == "" {
		log.Fatal().Msg("-room is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := fmt.Sprintf("ws://%s/ws", *addr)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("failed to connect")
	}
	defer conn.Close()

	if err := writeEvent(conn, relay.EventEnterRoom, *room); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}
	log.Info().Str("room_id", *room).Msg("watching room")

	var mu sync.Mutex
	state := clock.New(clock.Master{NPlayers: 2, TimeMinutes: 5})

	go readUpdates(conn, &mu, state)

	ticker := clock.NewTicker(clockwork.NewRealClock(), 100*time.Millisecond, func(elapsedMs int64) {
		mu.Lock()
		state.DecrementActive(elapsedMs)
		mu.Unlock()
	})
	go ticker.Run(ctx)

	render := time.NewTicker(time.Second)
	defer render.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-render.C:
			mu.Lock()
			fmt.Println(renderState(state))
			mu.Unlock()
		}
	}
}

func readUpdates(conn *websocket.Conn, mu *sync.Mutex, state *clock.State) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatal().Err(err).Msg("connection closed")
		}

		var env relay.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Err(err).Msg("malformed message")
			continue
		}

		switch env.Event {
		case relay.EventUpdate:
			var params map[string]any
			if err := json.Unmarshal(env.Data, &params); err != nil {
				log.Warn().Err(err).Msg("malformed update")
				continue
			}
			delta, err := clock.ParseDelta(clock.NormalizeParams(params))
			if err != nil {
				log.Warn().Err(err).Msg("undecodable update")
				continue
			}
			mu.Lock()
			state.ApplyUpdate(delta)
			mu.Unlock()
		case relay.EventError:
			var payload relay.ErrorPayload
			_ = json.Unmarshal(env.Data, &payload)
			log.Error().Str("message", payload.Message).Msg("server rejected message")
		}
	}
}

func writeEvent(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(relay.Envelope{Event: event, Data: raw})
}

func renderState(s *clock.State) string {
	parts := make([]string, len(s.Players))
	for i := range s.Players {
		marker := " "
		if i == s.Turn {
			marker = "*"
		}
		parts[i] = fmt.Sprintf("%sP%d %s", marker, i, s.Display(i))
	}
	if s.Paused {
		parts = append(parts, "[paused]")
	}
	return strings.Join(parts, "  ")
}
