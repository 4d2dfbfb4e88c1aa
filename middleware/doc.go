// Package middleware exposes net/http adapters that guard handlers with
// fastauth access tokens.
//
// # Guards
//
//   - [Guard] verifies the bearer token and stores the claims in the request
//     context. No store access.
//   - [Optional] does the same but lets requests without a token through.
//   - [RequireUser] additionally loads the account, rejecting tokens whose
//     user no longer exists.
//
// [RequestMeta] copies the client IP and User-Agent into the context so
// engine audit events carry them.
//
// This package translates HTTP semantics into Engine calls. It does not
// parse tokens itself.
package middleware
