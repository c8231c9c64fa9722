// Package migrations is the ordered schema history of the commerce
// platform: tenants and their domains, users, integrations, product
// packages and orders, and platform settings.
//
// Units are registered from init functions, one file per unit, and are
// never edited once deployed. Each unit probes the catalog before it
// changes anything and rescue-creates what an earlier unit should have
// left behind, so it can run against an empty database, a partially
// migrated one, or one where the change is already in place.
//
// Uniqueness of product_packages."publicCode" moved from global to
// per-tenant to per-product across three units. The last of them is
// authoritative; see Invariants.
package migrations
