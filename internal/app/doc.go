// Package app provides the application service layer.
//
// Orchestrates use cases: registration, the host-only user listing, votes and likes.
// Every mutation commits to the state store and then publishes the resulting full state,
// one mutation at a time. Depends on domain interfaces, not concrete implementations.
package app
