// Package broadcast implements the event hub using the actor pattern.
//
// One goroutine owns the subscriber map and is driven by a command channel (no mutexes).
// Each subscriber gets a bounded queue; a subscriber whose queue is full when an event
// arrives is disconnected instead of blocking the publisher or its peers.
package broadcast
