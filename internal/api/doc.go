// Package api exposes the chat service and the ledger over HTTP: session and
// message endpoints for the conversation, read-only account endpoints for the
// sidebar, plus health and Prometheus metrics.
package api
