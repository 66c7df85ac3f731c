package live

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/KlmnCapital/simulation-engine/internal/logging"
)

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_live_ws_active_connections",
		Help: "Current number of connected live-monitor WebSocket clients",
	})
	rejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_live_ws_rejected_total",
		Help: "Total number of rejected live-monitor WebSocket connections",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(activeConnections, rejectedTotal)
}

// Server exposes the Hub over a WebSocket endpoint, throttled per remote IP
// via a golang.org/x/time/rate token bucket, grounded on the teacher's
// pkg/liveserver.Server.
type Server struct {
	hub       *Hub
	logger    logging.Logger
	upgrader  websocket.Upgrader
	srv       *http.Server
	mu        sync.Mutex

	rateLimit  rate.Limit
	rateBurst  int
	ipLimiters sync.Map // map[string]*rate.Limiter
}

// NewServer returns a Server broadcasting hub's messages over /ws, allowing
// origins in allowedOrigins ("*" permits any).
func NewServer(hub *Hub, logger logging.Logger, allowedOrigins []string) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		hub:       hub,
		logger:    logger.WithField("component", "live_server"),
		rateLimit: 10,
		rateBurst: 20,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return s.checkOrigin(r, allowedOrigins) },
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return len(allowed) == 0
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originStr := parsed.Scheme + "://" + parsed.Host
	for _, a := range allowed {
		if a == "*" || a == originStr {
			return true
		}
	}
	return false
}

// Start serves the WebSocket endpoint at addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.mu.Lock()
	s.srv = &http.Server{Addr: addr, Handler: mux}
	s.mu.Unlock()

	s.logger.Info("starting live monitor server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) getIPLimiter(ip string) *rate.Limiter {
	if v, ok := s.ipLimiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(s.rateLimit, s.rateBurst)
	actual, _ := s.ipLimiters.LoadOrStore(ip, l)
	return actual.(*rate.Limiter)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := s.remoteIP(r)
	if !s.getIPLimiter(ip).Allow() {
		rejectedTotal.WithLabelValues("rate_limit").Inc()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID)
	s.hub.Register(client)
	activeConnections.Inc()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.writePump(conn, client) }()
	go func() { defer wg.Done(); s.readPump(conn, client) }()
	wg.Wait()

	s.hub.Unregister(client)
	activeConnections.Dec()
	_ = conn.Close()
}

func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.GetSendChan():
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer s.hub.Unregister(client)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Unix(),
	})
}

func (s *Server) remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
