// Package metrics exposes the authorization core's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthCodesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_codes_issued_total",
		Help: "Total number of authorization codes issued.",
	})
	AuthCodesExchangedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_codes_exchanged_total",
		Help: "Total number of authorization codes successfully exchanged.",
	})
	TokensRefreshedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_refreshed_total",
		Help: "Total number of refresh-token rotations.",
	})
	TokenReuseDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_reuse_detected_total",
		Help: "Total number of refresh-token reuse events that cascaded a grant revocation.",
	})
	DeviceCodesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_device_codes_created_total",
		Help: "Total number of device authorization requests created.",
	})
	DeviceCodesApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_device_codes_approved_total",
		Help: "Total number of device authorization requests approved.",
	})
	DeviceCodesDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_device_codes_denied_total",
		Help: "Total number of device authorization requests denied.",
	})
	SlowDownResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_device_slow_down_total",
		Help: "Total number of slow_down responses returned to polling devices.",
	})
)
