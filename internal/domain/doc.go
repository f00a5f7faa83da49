// Package domain contains the core concepts of the conversion service.
// Keep this package free of transport (HTTP) and infrastructure (process, Redis, Postgres) concerns.
package domain
