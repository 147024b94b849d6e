// Package client contains the catalogctl building blocks that talk to the
// outside world.
//
// # Overview
//
//  1. HTTPClient, a typed client for the catalog JSON API. Responses arrive
//     in the {success, data, error, details} envelope; failures are mapped
//     back onto the shared error values so callers can match them with
//     errors.Is and errors.As.
//  2. HealthChecker, a client of the standard gRPC health service exposed by
//     the server, plus a watcher that reports online/offline transitions.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
//   - 400 becomes media.ValidationErrors (one entry per server detail)
//   - 401 becomes common.ErrTokenExpired or common.ErrorUnauthorized
//   - 403, 404 and 409 become common.ErrorForbidden, ErrorNotFound and ErrorConflict
//   - 502 becomes *media.InfrastructureError
//   - transport failures wrap ErrUnavailable
package client
