package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Presence polling metrics
	PresenceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobalstonee_presence_lookups_total",
			Help: "Total presence lookups by observed status",
		},
		[]string{"status"},
	)

	PresenceLookupErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cobalstonee_presence_lookup_errors_total",
			Help: "Presence lookups that failed and were treated as unknown",
		},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cobalstonee_poll_duration_seconds",
			Help:    "Duration of one full presence poll tick",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Accrual metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobalstonee_sessions_started_total",
			Help: "Observed session starts",
		},
		[]string{"group"},
	)

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobalstonee_points_awarded_total",
			Help: "Reward points awarded",
		},
		[]string{"group"},
	)

	TrackedIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cobalstonee_tracked_identities",
			Help: "Number of tracked identities",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cobalstonee_active_sessions",
			Help: "Number of identities currently in a session",
		},
	)

	// Persistence metrics
	StoreSaveErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cobalstonee_store_save_errors_total",
			Help: "Failed write-through saves, retried on a later tick",
		},
	)

	// Report metrics
	ReportsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobalstonee_reports_delivered_total",
			Help: "Daily reports delivered to a sink",
		},
		[]string{"group"},
	)

	ReportDeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobalstonee_report_delivery_errors_total",
			Help: "Daily report deliveries that failed",
		},
		[]string{"group"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		PresenceLookups,
		PresenceLookupErrors,
		PollDuration,
		SessionsStarted,
		PointsAwarded,
		TrackedIdentities,
		ActiveSessions,
		StoreSaveErrors,
		ReportsDelivered,
		ReportDeliveryErrors,
	)
}

// Server is the metrics HTTP server. It also serves the liveness endpoint.
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")

	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.server.Addr)
		if err != nil {
			return err
		}
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
