// This is a http type of reporter.
// It reads the state of running event monitors
// and publishes it on the http routes.

package reporter

import (
	"context"
	"net/http"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

const (
	ROUTE_HELLO   = "/hello"
	ROUTE_STATUS  = "/status"
	ROUTE_METRICS = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// StatusProvider is satisfied by *chainsync.EventMonitor.
type StatusProvider interface {
	Name() string
	Cursor() chainsync.Cursor
	Stats() chainsync.Stats
}

// MonitorStatus is the payload of ROUTE_STATUS.
type MonitorStatus struct {
	Source string           `json:"source"`
	Cursor chainsync.Cursor `json:"cursor"`
	Stats  chainsync.Stats  `json:"stats"`
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	monitors []StatusProvider
	gatherer prometheus.Gatherer
}

// NewHttpReporter creates a reporter. A nil gatherer serves the default registry.
func NewHttpReporter(serverIP string, serverPort string, gatherer prometheus.Gatherer, monitors ...StatusProvider) *HttpReporter {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		monitors:   monitors,
		gatherer:   gatherer,
	}
}

func (h *HttpReporter) Address() string {
	return h.serverIP + ":" + h.serverPort
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Define routes & handlers
	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_STATUS, h.Status)
	router.GET(ROUTE_STATUS+"/:source", h.SourceStatus)
	router.GET(ROUTE_METRICS, gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	return router
}

// Hook up router & ip:port, serve until ctx is done.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.Address(),
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", srv.Addr).Info("http reporter listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "http reporter on %s", srv.Addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http reporter")
	}
	logger.Info("http reporter stopped")
	return nil
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

// Status publishes cursor and counters of every monitor.
func (h *HttpReporter) Status(c *gin.Context) {
	out := make([]MonitorStatus, 0, len(h.monitors))
	for _, m := range h.monitors {
		out = append(out, statusOf(m))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HttpReporter) SourceStatus(c *gin.Context) {
	source := c.Param("source")
	for _, m := range h.monitors {
		if m.Name() == source {
			c.JSON(http.StatusOK, statusOf(m))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown source " + source})
}

func statusOf(m StatusProvider) MonitorStatus {
	return MonitorStatus{
		Source: m.Name(),
		Cursor: m.Cursor(),
		Stats:  m.Stats(),
	}
}
