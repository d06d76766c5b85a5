// Package metrics exposes authentication counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess            = "success"
	ResultNotFound           = "not_found"
	ResultInvalidCredentials = "invalid_credentials"
	ResultInvalidToken       = "invalid_token"
	ResultError              = "error"

	RejectMissingToken = "missing_token"
	RejectInvalidToken = "invalid_token"
	RejectBlacklisted  = "blacklisted"
)

type Recorder interface {
	RecordLogin(result string)
	RecordRefresh(result string)
	RecordLogout()
	RecordGateRejection(reason string)
	RecordBlacklistPruned(count int64)
}

type Collector struct {
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logouts         prometheus.Counter
	gateRejections  *prometheus.CounterVec
	blacklistPruned prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nengtul_auth_login_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nengtul_auth_refresh_total",
			Help: "Refresh token exchanges by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nengtul_auth_logout_total",
			Help: "Access tokens revoked through logout.",
		}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nengtul_auth_gate_rejections_total",
			Help: "Requests rejected by the authentication gate.",
		}, []string{"reason"}),
		blacklistPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nengtul_auth_blacklist_pruned_total",
			Help: "Expired blacklist entries removed.",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.refreshes,
		c.logouts,
		c.gateRejections,
		c.blacklistPruned,
	)

	return c
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRefresh(result string) {
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordBlacklistPruned(count int64) {
	c.blacklistPruned.Add(float64(count))
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordLogin(string)          {}
func (Nop) RecordRefresh(string)        {}
func (Nop) RecordLogout()               {}
func (Nop) RecordGateRejection(string)  {}
func (Nop) RecordBlacklistPruned(int64) {}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
