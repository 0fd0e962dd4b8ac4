/*
Package types defines the core data structures shared across the query
orchestrator: the parsed Query, the Stage DAG produced by the planner,
the per-worker Task, the overall Plan, and the session's CacheEntry.

These are plain value types. Rewrites (canonicalization, stage
substitution, task fingerprinting) always produce new values rather
than mutating a shared AST in place — see the planner and task builder
packages for the functions that build them.
*/
package types
