package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Terminal and browser clients connect from anywhere.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const shutdownGrace = 5 * time.Second

// Options configures the signaling HTTP surface.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string
}

// TLS reports whether the server serves HTTPS.
func (o Options) TLS() bool {
	return o.CertFile != "" && o.KeyFile != ""
}

// ServeWs returns an http.HandlerFunc that upgrades requests to the
// signaling channel and hands each connection to hub.
func ServeWs(hub *signaling.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := signaling.NewClient(hub, conn)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// Handler builds the route table: /ws for the signaling channel and
// /health for liveness checks.
func Handler(hub *signaling.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/ws", ServeWs(hub, logger))
	return mux
}

// ListenAndServe runs the hub and the HTTP server until ctx is cancelled.
func ListenAndServe(ctx context.Context, opts Options, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()

	hub := signaling.NewHub(signaling.NewRegistry(), logger)
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           Handler(hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if opts.TLS() {
			logger.Info("starting signaling server", "addr", opts.Addr, "tls", true)
			errCh <- srv.ListenAndServeTLS(opts.CertFile, opts.KeyFile)
			return
		}
		logger.Info("starting signaling server", "addr", opts.Addr, "tls", false)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down signaling server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
