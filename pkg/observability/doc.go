// Package observability provides structured JSON logging, Prometheus metrics
// and health probes shared by the API server and the pusher.
package observability
