// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain types (ledger, report) carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain / *FromDomain mappers convert between the two
// 4. Stores in the persistence package operate on these models only
//
// The Postgres schema is owned by the SQL files under migrations/; AutoMigrate over
// All() is used for SQLite and tests, so both must describe the same tables.
package models
