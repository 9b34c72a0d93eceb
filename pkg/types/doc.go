// Package types defines the shared data model for storysync: tracker issues,
// outline task nodes, decomposition descriptors, checklist entries, the
// Tracker and Decomposer capability interfaces, run configuration, and the
// standard sentinel errors.
package types
