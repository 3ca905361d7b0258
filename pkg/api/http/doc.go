// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Signup and login, rate limited per client IP
//   - The ranking and player profiles
//   - The card catalog, draws and paid rerolls
//   - Live room snapshots
//   - Health checks and Prometheus metrics
//
// The game itself runs over the WebSocket mounted at /ws.
package http
