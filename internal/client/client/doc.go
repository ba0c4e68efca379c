// Package client talks to the tubeaccounts server over gRPC.
//
// GRPCClient keeps the current token pair in memory, attaches the access
// token to every call and, when the server reports an expired access token,
// refreshes the pair once and retries the call. Status codes are mapped to
// the sentinel errors in errors.go so callers can match them with errors.Is.
package client
