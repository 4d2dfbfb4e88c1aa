// Package flows holds the orchestration behind every Engine operation.
//
// Each Run function takes a request and a Deps struct made of plain function
// fields and sentinel errors, so the root package can wire stores, hashers
// and the JWT manager in without this package importing it. Flows keep no
// state between calls.
//
// Register, Login, ChangePassword and the logout flows emit their own audit
// events and metrics through the MetricInc and EmitAudit hooks. Refresh and
// Validate return a Result with a FailureKind and leave reporting to the
// caller.
package flows
