// Package main provides the schemaward CLI.
//
// The CLI supports:
//   - guard: Lint migration sources for patterns that broke production
//   - migrate: Apply pending migration units (migrate down reverts them)
//   - status: Show which units are applied, pending or missing
//   - plan: Assess pending units against the live schema without changing it
//   - doctor: Run health checks on the guard, tracking table and invariants
//   - maintenance: Read or toggle the persisted maintenance flag
//
// Usage:
//
//	schemaward [flags] <command>
//
// Commands that touch the database need --db, database.url in
// schemaward.yaml, or SCHEMAWARD_DATABASE_URL. The guard works on files only.
package main

func main() {
	Execute()
}
