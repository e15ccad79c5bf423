// Package metrics defines the Prometheus collectors exposed by the kubedeck
// broker bridge on /metrics.
package metrics
