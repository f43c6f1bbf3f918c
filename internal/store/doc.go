// Package store persists gateway configuration: connectors, routes and
// encrypted connector secrets. Two implementations exist, an in-memory
// store used for tests and config-file deployments, and a PostgreSQL
// store for shared deployments.
//
// Secret values are stored only as encrypted blobs. The store never
// sees plaintext credentials.
package store
