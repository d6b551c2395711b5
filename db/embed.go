// Package db provides the embedded database schema and default seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Products is the default catalog loaded by seed-db when no file is given.
//
//go:embed seed/products.json
var Products []byte
