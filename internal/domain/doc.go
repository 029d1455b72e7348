// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (user.go, poll.go, like.go, event.go, store.go, errors.go)
// hold shared types and the contracts that adapters implement. Apart from input
// validation shared by every store backend there is no implementation code here.
package domain
