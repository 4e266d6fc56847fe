// Package engine ties the checklist resolver and scheduler together for one
// hire. It can start a fresh checklist run, resume a persisted one, and fold
// in step results as the onboarding steps complete or fail.
package engine
