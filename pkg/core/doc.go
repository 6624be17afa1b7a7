// Package core defines the shared language of the taskforge system.
//
// This package contains:
//   - Catalog entities (Parameter, Option, Template, Dependency, ...)
//   - The transient Selection a configuration session mutates
//   - Error kinds shared by the graph builder, resolver and session
//   - Collaborator interfaces (CatalogStore, Allocator, ConditionEvaluator)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
