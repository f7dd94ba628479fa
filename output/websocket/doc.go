// Package websocket implements the WebSocket output component. It runs the
// HTTP server that upgrades client connections at the configured path,
// registers each connection as a broadcast subscriber and keeps it alive
// with ping/pong until the client goes away or the server shuts down.
//
// Clients receive one text frame per decoded event, "0" or "1". Inbound
// messages are drained and discarded; the read side exists only to detect
// disconnects and service pong replies.
package websocket
