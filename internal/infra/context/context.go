// Package context holds request-scoped values shared by transport, logging and services.
package context

type contextKey string
