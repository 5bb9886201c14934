// Package httpapi provides the local HTTP control API and WebSocket
// event stream for domofon-core.
//
// It exposes the door catalog, door-open commands, the known-face
// registry, watcher control and account/session views to local
// clients (home-automation hosts, admin tooling). Every route except
// the health check is gated by a static bearer token; the API is
// designed to be bound to localhost or a trusted LAN interface.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := httpapi.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package httpapi
