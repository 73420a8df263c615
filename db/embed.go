// Package db embeds the database schema and the development seed data so the
// server and the seed command work without any files on disk.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedVariants is the development stone variant catalog.
//
//go:embed seed/variants.json
var SeedVariants []byte

// SeedUsers is the development trade accounts with tiers and API keys.
//
//go:embed seed/users.json
var SeedUsers []byte
