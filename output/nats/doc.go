// Package nats implements the optional NATS event mirror. When a server
// URL is configured the mirror publishes every decoded event frame to a
// subject, letting other services observe the EMG stream without holding
// a WebSocket connection. Without a URL the component is inert.
//
// Publication is best effort: a mirror outage never blocks or degrades
// WebSocket delivery.
package nats
