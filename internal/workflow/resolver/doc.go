// Package resolver evaluates which onboarding steps still need to run for a
// hire. It builds the dependency graph from a checklist definition,
// instantiates steps from the registry, and checks step outputs in the hire's
// run directory to decide readiness.
package resolver
