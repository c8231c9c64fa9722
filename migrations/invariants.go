package migrations

import "github.com/pthm/schemaward/pkg/schema"

// Invariants returns the statements that hold once the whole sequence is
// applied. Where units redefined the same invariant, the last one wins.
func Invariants() []schema.Invariant {
	return []schema.Invariant{
		schema.NotNullInvariant(productOrdersTable, "tenantId"),
		schema.UUIDDefaultInvariant(integrationsTable, "id"),
		schema.IndexInvariant(publicCodePerProduct),
		schema.IndexAbsentInvariant(publicCodeGlobalIndex,
			"global publicCode uniqueness was superseded by per-product scope"),
		schema.IndexAbsentInvariant(publicCodePerTenantIndex,
			"per-tenant publicCode uniqueness was superseded by per-product scope"),
	}
}
