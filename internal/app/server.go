package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lookout-monitor/lookout/internal/app/middleware"
	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/util"
)

func (a *Application) startWebServer() {
	cfg := a.currentConfig()
	a.logger.Info("Starting WebServer...", "host", cfg.Server.Host, "port", cfg.Server.Port)

	mux := http.NewServeMux()

	a.registerRoutes()

	// CIDRs were validated at load time, a parse failure cannot reach here.
	trustedCIDRs, _ := util.ParseTrustedCIDRs(cfg.Server.TrustedProxyCIDRs)
	trust := middleware.ProxyTrust{
		TrustHeaders: cfg.Server.TrustProxyHeaders,
		TrustedCIDRs: trustedCIDRs,
	}

	chain := make([]func(http.Handler) http.Handler, 0, 5)
	if cfg.Server.RequestLogging {
		chain = append(chain, middleware.RequestLogging(a.logger, trust))
	}
	if cfg.Server.AccessLog {
		chain = append(chain, middleware.AccessLogging(a.logger, trust))
	}
	chain = append(chain, middleware.Metrics(a.telemetry), middleware.CORS())
	if cfg.PasswordProtection != "" {
		chain = append(chain, middleware.BasicAuth(cfg.PasswordProtection))
	}
	a.registry.WireUpWithMiddleware(mux, chain...)

	a.server.Handler = mux

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	a.logger.Info("Started WebServer", "bind", a.server.Addr)
}

func (a *Application) registerRoutes() {
	a.registry.Register(constants.PathAPIStatus, a.statusHandler, "Aggregated status of every monitor")
	a.registry.Register(constants.PathAPIData, a.dataHandler, "Flat per-monitor rows for dashboards")
	a.registry.Register(constants.PathAPIHistory, a.historyHandler, "Latency history for one monitor")
	a.registry.Register(constants.PathAPIIncidents, a.incidentsHandler, "Incident log grouped by month")
	a.registry.Register(constants.PathAPIBadge, a.badgeHandler, "shields.io endpoint badge")
	a.registry.Register(constants.PathAPIConfig, a.configHandler, "Sanitised monitor configuration")
	a.registry.Register(constants.PathHealthz, a.healthHandler, "Liveness and store connectivity")
	a.registry.Register(constants.PathMetrics, a.metricsHandler, "Prometheus metrics")
	a.registry.Register(constants.PathVersion, a.versionHandler, "Build and version metadata")
}

func (a *Application) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError keeps the failure contract uniform: a short JSON body and 500.
func (a *Application) writeError(w http.ResponseWriter, err error) {
	a.logger.Error("Request failed", "error", err)
	a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// writeCachedJSON serves the cached rendering when fresh, otherwise builds,
// caches and serves it. Failed builds are never cached.
func (a *Application) writeCachedJSON(w http.ResponseWriter, r *http.Request, key string, build func(ctx context.Context) (any, error)) {
	if cached, ok := a.respCache.Get(key); ok {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	payload, err := build(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.writeError(w, err)
		return
	}
	body = append(body, '\n')
	a.respCache.Set(key, body)

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *Application) metricsHandler(w http.ResponseWriter, r *http.Request) {
	a.telemetry.Handler().ServeHTTP(w, r)
}
