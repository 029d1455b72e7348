// Package websocket is the push channel of the room. Each connection gets a
// hub subscription, a snapshot of the poll and likes, and then every event the
// hub fans out. Clients may send votes back over the same connection.
package websocket
