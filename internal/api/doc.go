// Package api holds the wire contract shared by the account server and its
// client: the gRPC service and method names, request/response messages and
// the JSON codec they travel in.
package api
