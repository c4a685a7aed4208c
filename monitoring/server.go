package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultPushInterval = time.Second

// StatsServer exposes a Counters snapshot over HTTP at /stats and pushes one
// every interval to websocket clients at /stats/ws.
type StatsServer struct {
	server   *http.Server
	counters *Counters
	interval time.Duration
	logger   *zap.Logger
	upgrader websocket.Upgrader

	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
}

// NewStatsServer configures a server on addr. A non-positive interval means
// one push per second.
func NewStatsServer(addr string, counters *Counters, interval time.Duration, logger *zap.Logger) *StatsServer {
	if interval <= 0 {
		interval = defaultPushInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatsServer{
		counters: counters,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		done:     make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler serves /stats and /stats/ws.
func (s *StatsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stats/ws", s.handleWebSocket)
	return s.recovery(mux)
}

// Start binds the listen address and serves in the background.
func (s *StatsServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("stats server: %w", err)
	}
	s.listener = ln
	s.logger.Info("stats server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("stats server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once started, otherwise the configured one.
func (s *StatsServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

func (s *StatsServer) Stop() error {
	s.stopOnce.Do(func() { close(s.done) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("stats server forced to shutdown: %w", err)
	}
	return nil
}

func (s *StatsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.counters.Snapshot()); err != nil {
		s.logger.Debug("write stats", zap.Error(err))
	}
}

func (s *StatsServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain reads so close frames from the peer are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		conn.SetWriteDeadline(time.Now().Add(s.interval + 5*time.Second))
		if err := conn.WriteJSON(s.counters.Snapshot()); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		}
	}
}

func (s *StatsServer) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 1024)
				n := runtime.Stack(buf, false)
				s.logger.Error("panic in stats handler", zap.Any("panic", err), zap.ByteString("stack", buf[:n]))
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
