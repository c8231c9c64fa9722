// Package migrator sequences and applies schema migration units.
//
// A Sequence holds every Unit of a schema's history, keyed by a timestamp
// Version. A Runner applies the pending units of a sequence to a database
// in version order, one transaction per unit, under a lock, and records
// each applied unit in a tracking table (schema_migrations by default).
//
// Units are written as decision tables of schema.Transition values, so
// every unit tolerates running against a schema that an earlier unit left
// absent, half-built or already finished. Runs never retry: the first
// failing unit rolls back and aborts the run with a *UnitError.
package migrator
