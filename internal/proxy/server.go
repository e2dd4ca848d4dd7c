// Package proxy implements the secret-injecting token relay. The process is
// the only holder of the confidential client secret: it accepts
// token-exchange requests without one, injects the secret, forwards the
// request to the provider's token endpoint, and relays the response
// unmodified.
package proxy

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"authrelay/internal/config"
	"authrelay/internal/logging"
)

// New builds the proxy's HTTP server.
func New(conf *config.ProxyConfig, creds *config.Credentials) *http.Server {
	return NewWithRegistry(conf, creds, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry is New with an injectable metrics registry.
func NewWithRegistry(conf *config.ProxyConfig, creds *config.Credentials,
	promRegisterer prometheus.Registerer, promGatherer prometheus.Gatherer) *http.Server {

	api := newAPI(creds, &http.Client{Timeout: 30 * time.Second})
	return newServer(conf, api, promRegisterer, promGatherer)
}

func newServer(conf *config.ProxyConfig, api http.Handler,
	promRegisterer prometheus.Registerer, promGatherer prometheus.Gatherer) *http.Server {

	promHandler := promhttp.HandlerFor(promGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	requestDurationSecs := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests in seconds",
	}, []string{"method", "path", "status"})
	promRegisterer.MustRegister(requestDurationSecs)

	return &http.Server{
		Addr: conf.Server.Addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := time.Now()
			sr := &statusRecorder{ResponseWriter: w}
			defer func() {
				status := fmt.Sprintf("%d", sr.getStatusCode())
				requestDurationSecs.
					WithLabelValues(r.Method, r.URL.Path, status).
					Observe(time.Since(t).Seconds())
			}()

			w = sr
			r = logging.IntoRequest(r, logrus.WithField("http", logrus.Fields{
				"requestID": uuid.NewString(),
				"method":    r.Method,
				"path":      r.URL.Path,
			}))

			switch r.URL.Path {
			case pathHealth:
				respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
			case pathMetrics:
				promHandler.ServeHTTP(w, r)
			default:
				api.ServeHTTP(w, r)
			}
		}),
	}
}
