// Package postgres stores player accounts in PostgreSQL through GORM.
//
// The schema is owned by the embedded golang-migrate migrations; the GORM
// model only maps columns.
package postgres
