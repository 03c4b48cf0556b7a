// Package server hosts the Fiber admin application: request-id and access-log
// middleware, panic recovery and JSON error rendering. Route handlers live in
// the routes subpackage and receive the shared helper.Helper explicitly.
package server
