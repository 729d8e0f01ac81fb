package wsadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"takserver/account"
	"takserver/chat"
	"takserver/fabric"
	"takserver/finalize"
	"takserver/gameplay"
	"takserver/guest"
	"takserver/logging"
	"takserver/match"
	"takserver/player"
	"takserver/rating"
	"takserver/seek"
	"takserver/server"
	"takserver/stats"
	"takserver/storage"
)

// setupTestServer assembles a full in-memory stack. Accounts/ratings/
// stats use the in-memory implementations directly; completed-game
// persistence uses a nil *storage.Store (storage.NewStore(ctx, "")
// always returns one), exercising the "disabled store is a safe no-op"
// idiom without needing a live Postgres instance.
func setupTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()

	logger := slog.New(logging.NewCompactHandler(io.Discard, slog.LevelError))

	guests := guest.NewRegistry()
	persistent := account.NewMemoryPort()
	accounts := server.NewAccountDirectory(persistent, guests)
	players := player.NewResolver(accounts)

	ctx := context.Background()
	seekNotify := server.NewNotifyHub()
	seeks := seek.NewRegistry(seekNotify)

	hooks := server.NewOnlineHooks(ctx, players, seeks)
	fab := fabric.New(logger, hooks)
	seekNotify.Bind(fab)

	matches := match.NewService()
	locator := server.NewPlayerLocator(players, fab)
	ratingsStore := rating.NewMemoryStore()
	statsStore := stats.NewMemoryStore()
	playerInfo := server.NewPlayerInfo(players, accounts)
	gameRepo, _ := storage.NewStore(ctx, "")
	fin := finalize.New(logger, ratingsStore, statsStore, matches, playerInfo, gameRepo)

	games := gameplay.NewService(logger, fab, locator, fin, nil, 24*time.Hour, time.Second)
	disconnects := gameplay.NewDisconnectWatchers(games)
	hooks.Bind(disconnects)

	silence := server.NewSilenceChecker(players)
	policy := chat.NewWordListPolicy(nil)
	chatSvc := chat.New(logger, policy, fab, silence)

	srv := server.New(accounts, guests, players, fab, seeks, matches, games, ratingsStore, statsStore, chatSvc, fin, disconnects)

	hub := NewHub(logger, srv, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	ts := httptest.NewServer(mux)
	return ts, ts.Close
}

func connectWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return conn
}

// readMsg returns the next frame, passing over players_online broadcasts:
// every account that binds or unbinds emits one, interleaved with replies.
func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read message: %v", err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal: %v\ndata: %s", err, string(data))
		}
		if msg["type"] == "players_online" {
			continue
		}
		return msg
	}
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
}

func TestIntegration_AuthThenCreateSeek(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	conn := connectWS(t, ts)
	defer conn.Close()

	sendMsg(t, conn, map[string]string{"type": "auth", "guestToken": "alice-token"})
	authOk := readMsg(t, conn)
	if authOk["type"] != "auth_ok" {
		t.Fatalf("expected auth_ok, got %v", authOk["type"])
	}

	sendMsg(t, conn, map[string]any{
		"type":         "create_seek",
		"boardSize":    5,
		"pieces":       21,
		"capstones":    1,
		"contingentMs": 600000,
	})
	seekMsg := readMsg(t, conn)
	if seekMsg["type"] != "seek_created" {
		t.Fatalf("expected seek_created, got %v", seekMsg)
	}
}

func TestIntegration_UnauthenticatedMessageRejected(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	conn := connectWS(t, ts)
	defer conn.Close()

	sendMsg(t, conn, map[string]string{"type": "create_seek"})
	msg := readMsg(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("expected error for unauthenticated message, got %v", msg["type"])
	}
}

func TestIntegration_SeekAcceptStartsGame(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	conn1 := connectWS(t, ts)
	defer conn1.Close()
	conn2 := connectWS(t, ts)
	defer conn2.Close()

	sendMsg(t, conn1, map[string]string{"type": "auth", "guestToken": "alice-token"})
	readMsg(t, conn1) // auth_ok
	sendMsg(t, conn2, map[string]string{"type": "auth", "guestToken": "bob-token"})
	readMsg(t, conn2) // auth_ok

	sendMsg(t, conn1, map[string]any{
		"type":         "create_seek",
		"boardSize":    5,
		"pieces":       21,
		"capstones":    1,
		"contingentMs": 600000,
	})
	created := readMsg(t, conn1)
	if created["type"] != "seek_created" {
		t.Fatalf("expected seek_created, got %v", created)
	}
	seekPayload, ok := created["seek"].(map[string]any)
	if !ok {
		t.Fatalf("expected seek payload, got %v", created)
	}
	seekID := seekPayload["ID"]

	sendMsg(t, conn2, map[string]any{"type": "accept_seek", "seekID": seekID})

	// Accepting removes the seek, which is announced before the game starts.
	canceled := readMsg(t, conn1)
	if canceled["type"] != "seek_canceled" {
		t.Fatalf("expected seek_canceled for the accepted seek, got %v", canceled)
	}

	gameStarted := readMsg(t, conn1)
	if gameStarted["type"] != "game_started" {
		t.Fatalf("expected game_started for seek creator, got %v", gameStarted)
	}
}
