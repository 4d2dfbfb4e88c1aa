// Package config loads engine settings from a YAML file, a .env file and
// FASTAUTH_* environment variables, in increasing order of precedence.
//
// Every key has a default taken from fastauth.DefaultConfig, so an empty
// environment plus a signing key is a working setup:
//
//	FASTAUTH_JWT_PRIVATE_KEY=... ./server
//
// Nested keys map to variables by upper-casing and replacing dots with
// underscores: jwt.access_ttl becomes FASTAUTH_JWT_ACCESS_TTL.
package config
