// Package redis implements domain.StateStore on Redis.
//
// Every multi-key operation runs as a single Lua script so Redis executes it
// atomically; Initialize uses WATCH + MULTI/EXEC. The client carries two hooks:
// a gobreaker circuit breaker that fails fast while Redis is down, and a metrics
// hook that counts and times every command.
package redis
