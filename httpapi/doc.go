// Package httpapi serves the engine over HTTP with gin.
//
//	POST /register      {email, username?, password}       201 token pair
//	POST /login         {identifier, password}             200 token pair
//	POST /refresh       {refresh_token}                    200 token pair
//	POST /logout        {refresh_token}                    204
//	POST /logout-all    (bearer)                           200 {removed}
//	POST /password      (bearer) {current, new}            204
//	GET  /me            (bearer)                           200 user
//
// Success bodies are wrapped as {"data": ...}; failures as
// {"error": {"code", "message", "fields"}}. Password hashes never leave
// the server.
package httpapi
