// Command takserver starts the Tak game server: it wires every domain
// service together via the server package, serves WebSocket connections
// through wsadapter, and exposes the minimal HTTP read endpoints needed
// to exercise the storage ports. Grounded on a main.go
// wiring sequence (load env/config, construct storage, construct the
// hub, start listening), generalized to this server's larger service
// graph and to a graceful-shutdown errgroup in place of a
// single blocking ListenAndServe call.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"takserver/auth"
	"takserver/chat"
	"takserver/config"
	"takserver/fabric"
	"takserver/finalize"
	"takserver/gameplay"
	"takserver/guest"
	"takserver/ids"
	"takserver/logging"
	"takserver/match"
	"takserver/player"
	"takserver/rating"
	"takserver/seek"
	"takserver/server"
	"takserver/stats"
	"takserver/storage"
	"takserver/wsadapter"
)

func main() {
	log := slog.New(logging.NewCompactHandler(os.Stdout, slog.LevelInfo))

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found; using environment variables", "tag", "main")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "tag", "main", "error", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
		log.Info("storage: connected", "tag", "main")
	} else {
		log.Info("storage: disabled (DATABASE_URL not set); running in-memory only", "tag", "main")
	}

	var validator *auth.Validator
	if cfg.AuthBaseURL == "" {
		log.Warn("auth: AUTH_BASE_URL is not set; WebSocket auth will only accept guest tokens", "tag", "main")
	} else {
		validator, err = auth.NewValidator(cfg.AuthBaseURL, "Player")
		if err != nil {
			log.Error("failed to construct auth validator", "tag", "main", "error", err)
			os.Exit(1)
		}
		log.Info("auth: configured", "tag", "main", "base_url", cfg.AuthBaseURL)
	}

	guests := guest.NewRegistry()
	accounts := server.NewAccountDirectory(store, guests)
	players := player.NewResolver(accounts)

	seekNotify := server.NewNotifyHub()
	seeks := seek.NewRegistry(seekNotify)

	hooks := server.NewOnlineHooks(ctx, players, seeks)
	fab := fabric.New(log.With("tag", "fabric"), hooks)
	seekNotify.Bind(fab)

	matches := match.NewService()
	locator := server.NewPlayerLocator(players, fab)
	playerInfo := server.NewPlayerInfo(players, accounts)
	ratings := ratingsStoreOrMemory(store)
	statsStore := statsStoreOrMemory(store)
	fin := finalize.New(log.With("tag", "finalize"), ratings, statsStore, matches, playerInfo, store)

	games := gameplay.NewService(log.With("tag", "game"), fab, locator, fin, nil,
		cfg.DisconnectForfeitThreshold, cfg.MinTimeoutRetryDelay)
	disconnects := gameplay.NewDisconnectWatchers(games)
	hooks.Bind(disconnects)

	silence := server.NewSilenceChecker(players)
	policy := chat.NewWordListPolicy(nil)
	chatSvc := chat.New(log.With("tag", "chat"), policy, fab, silence)

	srv := server.New(accounts, guests, players, fab, seeks, matches, games,
		ratings, statsStore, chatSvc, fin, disconnects)

	hub := wsadapter.NewHub(log.With("tag", "wsadapter"), srv, validator)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/api/games", gamesHandler(log, store, validator))

	httpServer := &http.Server{
		Addr:    cfg.BindHost + ":" + strconv.Itoa(cfg.BindPort),
		Handler: mux,
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("listening", "tag", "main", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return srv.RunCleanupTickers(gctx, log.With("tag", "server"),
			cfg.GuestCleanupInterval, cfg.GuestInactivityThreshold,
			cfg.MatchCleanupInterval, cfg.MatchIdleThreshold)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error("server exited with error", "tag", "main", "error", err)
		os.Exit(1)
	}
}

// ratingsStoreOrMemory falls back to an in-memory rating store when
// persistence is disabled, since a nil *storage.Store still implements
// rating.Store but never retains anything across a restart, which the
// MemoryStore makes explicit rather than implicit.
func ratingsStoreOrMemory(store *storage.Store) rating.Store {
	if store == nil {
		return rating.NewMemoryStore()
	}
	return store
}

func statsStoreOrMemory(store *storage.Store) stats.Store {
	if store == nil {
		return stats.NewMemoryStore()
	}
	return store
}

// gamesHandler serves GET /api/games?playerId=... — a bearer-token-gated
// read of one player's completed-game history, the minimal HTTP surface
// needed to exercise storage.QueryGames (spec.md §6), mirroring the
// /api/history-style endpoint.
func gamesHandler(log *slog.Logger, store *storage.Store, validator *auth.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if validator == nil {
			http.Error(w, "server auth not configured", http.StatusServiceUnavailable)
			return
		}
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		claims, err := validator.Validate(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		playerID := ids.PlayerId(r.URL.Query().Get("playerId"))
		if playerID == "" {
			playerID = ids.PlayerId(claims.AccountID)
		}

		games, err := store.QueryGames(r.Context(), playerID, 50)
		if err != nil {
			log.Error("query games failed", "tag", "main", "error", err)
			http.Error(w, "failed to load games", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(games)
	}
}
