// Package storage provides the database side of handler resources.
//
// This package includes:
//   - Databases: a namespace-to-*gorm.DB provider backed by SQLite files or
//     PostgreSQL schemas
//   - Pool options applied to every namespace handle
//   - InvocationLog: persisted records of dispatched handler calls, with
//     retried writes
//
// Most users should import the root package github.com/jdziat/simple-analytics
// which wires Databases from configuration.
package storage
