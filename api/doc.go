// Package api defines the request and response bodies of the Cortex HTTP API.
//
// # API Overview
//
// Cortex provides a RESTful API for:
//   - Indexing uploaded documents into the graph, sparse and vector indexes
//   - Multi-turn conversations backed by the reasoning pipeline
//   - One-shot reasoning and sparse retrieval
//   - Listing documents, conversations and long-term memories
//   - Health monitoring and service information
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// Prometheus metrics are served on the metrics port (default 9091) at /metrics.
package api
