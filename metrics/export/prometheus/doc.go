// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// [New] wraps an engine and exposes an [http.Handler]. Counters are named
// fastauth_*_total and the validation latency histogram is
// fastauth_validate_latency_seconds. Nothing is registered globally;
// callers mount the handler.
package prometheus
