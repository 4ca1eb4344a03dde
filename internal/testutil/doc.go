// Package testutil provides shared fixtures for narrate tests: taxonomy
// documents built fluently or from a standard fixture, and correction
// stores seeded on in-memory SQLite.
//
// Example:
//
//	tax := testutil.NewTaxonomyBuilder(t).
//		WithStandardCategories().
//		WithLeaf("Salary", "payroll").
//		Build()
//
//	store := testutil.SetupCorrections(t, tax.IsValid,
//		testutil.Seed{Narration: "Blue Tokai", Category: "Dining / Cafes"})
package testutil
