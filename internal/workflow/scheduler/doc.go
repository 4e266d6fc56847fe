// Package scheduler turns resolver snapshots into batches of onboarding steps
// that are safe to run now: dependency order is respected and concurrency caps
// are enforced. The checklist engine calls it to decide which steps to
// dispatch next without re-implementing the filtering itself.
package scheduler
