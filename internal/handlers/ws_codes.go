// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby handler. These give
// clients a more specific close reason than the standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	HeartbeatTimeout    = 3001 // No heartbeat received inside the configured interval.
)
