// Package websocket provides real-time event streaming via WebSocket.
//
// Clients connect to /api/v1/analyses/:id/ws to receive the session's
// ordered progress events as they are published.
package websocket
