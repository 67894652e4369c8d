// Package integration exercises the cache stores that need a real server:
// PostgreSQL, MongoDB and Redis, each started with testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
