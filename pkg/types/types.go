package types

import (
	"fmt"
	"strings"
	"time"

	"vitess.io/vitess/go/vt/sqlparser"
)

// Query is a single SQL statement after canonicalization.
//
// SQL is the canonicalized text (stable formatting, stable casing for
// built-in function names, user identifiers preserved). Fingerprint is
// the MD5 hex digest of SQL. Prefixes is nil after Parse; neither the
// planner nor the controller fills it in, and it is set only by a
// caller through WithPrefixes.
type Query struct {
	SQL         string
	AST         sqlparser.Statement
	Fingerprint string
	Prefixes    []string
}

// WithPrefixes returns a copy of q with Prefixes set, leaving the
// receiver untouched.
func (q Query) WithPrefixes(prefixes []string) Query {
	q.Prefixes = prefixes
	return q
}

// StageKind classifies the SQL operator a Stage lowers.
type StageKind string

const (
	StageScan      StageKind = "scan"
	StageAggregate StageKind = "aggregate"
	StageSort      StageKind = "sort"
	StageJoin      StageKind = "join"
	StageUnion     StageKind = "union"
)

// Stage is a node in the execution DAG produced by the planner. A
// Stage is a value describing a slice of the query; it does not own a
// mutable AST — SubSQL is already fully formed text with dependency
// references substituted in as placeholder identifiers.
type Stage struct {
	ID   string
	Kind StageKind

	// SubSQL is this stage's SQL, with each FROM-list table reference
	// already rewritten: a placeholder identifier for a dependency, or
	// still a raw source reference for a leaf Scan.
	SubSQL string
	SubAST sqlparser.SelectStatement

	// Alias is restored when this stage is substituted into a parent's
	// FROM list (empty for the root stage).
	Alias string

	Dependencies map[string]*Stage
	Dependents   map[string]*Stage

	// Tasks is populated lazily by the Controller with the Task
	// Builder's output once the stage's concrete input (resolved source
	// files, or dependency outputs) is known — never at plan time.
	Tasks []*Task
}

// NewStage returns a Stage with its dependency/dependent sets
// initialized and no tasks.
func NewStage(id string, kind StageKind, subSQL string, subAST sqlparser.SelectStatement) *Stage {
	return &Stage{
		ID:           id,
		Kind:         kind,
		SubSQL:       subSQL,
		SubAST:       subAST,
		Dependencies: make(map[string]*Stage),
		Dependents:   make(map[string]*Stage),
	}
}

// AddDependency records that s consumes dep's output, and that dep is
// consumed by s.
func (s *Stage) AddDependency(dep *Stage) {
	s.Dependencies[dep.ID] = dep
	dep.Dependents[s.ID] = s
}

// IsLeaf reports whether the stage has no upstream dependencies.
func (s *Stage) IsLeaf() bool {
	return len(s.Dependencies) == 0
}

// IsRoot reports whether the stage has no downstream dependents.
func (s *Stage) IsRoot() bool {
	return len(s.Dependents) == 0
}

// FanOutPolicy reports whether stages of this kind are partitionable
// (Scan) or must execute as a single wide task (everything else).
// Set at execution time by the Task Builder, never at plan time.
func (k StageKind) FanOutPolicy() FanOutPolicy {
	if k == StageScan {
		return FanOutPartitionable
	}
	return FanOutSingleTask
}

// FanOutPolicy describes how a stage's input is divided into tasks.
type FanOutPolicy string

const (
	FanOutPartitionable FanOutPolicy = "partitionable"
	FanOutSingleTask    FanOutPolicy = "single-task"
)

func (s *Stage) String() string {
	var deps []string
	for id := range s.Dependencies {
		deps = append(deps, id)
	}
	return fmt.Sprintf("Stage<%s kind=%s deps=[%s]>", s.ID, s.Kind, strings.Join(deps, ","))
}

// Task is an atomic, fully concrete unit of work bound to one worker.
//
// Subquery has every FROM rewritten to a literal file list. Fingerprint
// is the MD5 hex digest of Subquery and doubles as the output object's
// base name; OutputKey is "<prefix>/<fingerprint>.<ext>".
type Task struct {
	Subquery    string
	Fingerprint string
	OutputKey   string
}

func (t *Task) String() string {
	return fmt.Sprintf("Task<fingerprint=%s key=%s>", t.Fingerprint, t.OutputKey)
}

// Plan is the full execution DAG for one Query.
type Plan struct {
	Query *Query
	Root  *Stage
	DAG   map[string]*Stage
}

// Leaves returns the subset of stages with no dependencies, in no
// particular order.
func (p *Plan) Leaves() []*Stage {
	var leaves []*Stage
	for _, s := range p.DAG {
		if s.IsLeaf() {
			leaves = append(leaves, s)
		}
	}
	return leaves
}

func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan<root=%s>\n", p.Root.ID)
	for _, s := range p.DAG {
		fmt.Fprintf(&b, "  %s\n", s.String())
	}
	return b.String()
}

// CacheEntry records the last successful execution time for a task
// fingerprint. It is a hint, never authoritative: callers must still
// confirm the backing object exists before honoring it.
type CacheEntry struct {
	Fingerprint string
	ExecutedAt  time.Time
}

// Expired reports whether the entry is older than ttl as of now.
func (c CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.ExecutedAt) > ttl
}
