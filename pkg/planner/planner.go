// Package planner implements the Planner (C3): it lowers a Query's AST
// into a DAG of typed Stages, recursively handling CTEs, subqueries in
// FROM, and JOINs, and classifying each stage's kind.
package planner

import (
	"crypto/md5" //nolint:gosec // stage id derivation, not cryptographic
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/sqlcanon"
	"github.com/tobiasegelund/duckingit/pkg/types"
	"vitess.io/vitess/go/vt/sqlparser"
)

// aggregateFuncs is the set of built-in function names that mark a
// SELECT as an Aggregate stage when present anywhere in its select list.
var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"group_concat": true, "array_agg": true, "string_agg": true,
}

// ctx threads the CTE-alias registry and the whole-plan stage registry
// through a recursive lowering pass. It is built once per top-level
// Plan call and passed explicitly at every recursion — never carried
// as a mutable default argument or package global (see DESIGN.md's CTE
// lifecycle note).
type ctx struct {
	ctes   map[string]*types.Stage // lower-cased CTE alias -> stage
	stages map[string]*types.Stage // stage id -> stage, for dedup

	// placeholders and seq carry the reader-call substitution state
	// (see sqlcanon) across every independent fragment this Plan call
	// parses — a CTE's body, then the main body — so each reader call
	// gets a placeholder unique across the whole query, and any of
	// them can be restored back into a stage's sub_sql wherever it
	// ends up.
	placeholders sqlcanon.Placeholders
	seq          int
}

// Plan lowers query into a Stage DAG. Fails with UnsupportedDialect
// for a top-level UNION, more than one FROM expression anywhere in the
// tree, or a FROM expression shape the planner does not recognize.
func Plan(query *types.Query) (*types.Plan, error) {
	c := &ctx{
		ctes:         make(map[string]*types.Stage),
		stages:       make(map[string]*types.Stage),
		placeholders: make(sqlcanon.Placeholders),
	}

	root, err := lowerSQL(c, query.SQL)
	if err != nil {
		return nil, err
	}

	return &types.Plan{
		Query: query,
		Root:  root,
		DAG:   collectDAG(root),
	}, nil
}

// parse parses a raw fragment of the source query (a CTE body, or the
// main body) through vitess. vitess speaks the MySQL dialect and has no
// grammar for DuckDB's READ_<FORMAT>([...]) table-reader calls, so
// every such call in sql is first swapped for a synthetic identifier it
// can parse as an ordinary table name; the substitution is recorded on
// c so later stages can restore the literal call text into their
// sub_sql once lowering has reprinted the AST.
func (c *ctx) parse(sql string) (sqlparser.Statement, error) {
	rewritten, placeholders, next := sqlcanon.ExtractReaderCalls(sql, c.seq)
	c.seq = next
	for name, call := range placeholders {
		c.placeholders[name] = call
	}
	return sqlparser.Parse(rewritten)
}

func lowerSQL(c *ctx, sql string) (*types.Stage, error) {
	ctes, mainSQL, err := splitCTEs(sql)
	if err != nil {
		return nil, lakeerr.Wrap(err, lakeerr.KindParseError, "parsing WITH clause")
	}

	for _, cte := range ctes {
		stmt, err := c.parse(cte.Body)
		if err != nil {
			return nil, lakeerr.Wrapf(err, lakeerr.KindParseError, "parsing CTE %s", cte.Alias)
		}
		sel, ok := stmt.(*sqlparser.Select)
		if !ok {
			return nil, lakeerr.NewUnsupportedDialect(fmt.Sprintf("CTE %s body is not a SELECT", cte.Alias))
		}
		stage, err := lowerSelect(c, sel)
		if err != nil {
			return nil, err
		}
		c.ctes[strings.ToLower(cte.Alias)] = stage
	}

	stmt, err := c.parse(mainSQL)
	if err != nil {
		return nil, lakeerr.Wrap(err, lakeerr.KindParseError, "parsing query")
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		return lowerSelect(c, s)
	case *sqlparser.Union:
		return nil, lakeerr.NewUnsupportedDialect("top-level UNION")
	default:
		return nil, lakeerr.NewUnsupportedDialect(fmt.Sprintf("statement type %T", stmt))
	}
}

func lowerSelect(c *ctx, sel *sqlparser.Select) (*types.Stage, error) {
	if len(sel.From) != 1 {
		return nil, lakeerr.NewUnsupportedDialect("FROM list must have exactly one expression")
	}

	rewrittenFrom, deps, err := lowerTableExpr(c, sel.From[0])
	if err != nil {
		return nil, err
	}

	selCopy := *sel
	selCopy.From = sqlparser.TableExprs{rewrittenFrom}
	subSQL := sqlcanon.RestoreReaderCalls(sqlparser.String(&selCopy), c.placeholders)

	id := stageID(subSQL)
	if existing, ok := c.stages[id]; ok {
		return existing, nil
	}

	kind := classifyKind(sel)
	stage := types.NewStage(id, kind, subSQL, &selCopy)
	for _, dep := range deps {
		stage.AddDependency(dep)
	}

	c.stages[id] = stage
	return stage, nil
}

// lowerTableExpr rewrites one FROM-list table expression, recursing
// into subqueries and both sides of a join. It returns the rewritten
// expression (dependency references replaced by a placeholder table
// name bearing the dependency stage's id) and the stages this
// expression depends on directly (zero for a leaf scan, one for a
// CTE/subquery reference, and for a join the combined dependencies of
// both sides, from zero to two).
func lowerTableExpr(c *ctx, te sqlparser.TableExpr) (sqlparser.TableExpr, []*types.Stage, error) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		return lowerAliasedTableExpr(c, t)

	case *sqlparser.JoinTableExpr:
		leftRef, leftDeps, err := lowerTableExpr(c, t.LeftExpr)
		if err != nil {
			return nil, nil, err
		}
		rightRef, rightDeps, err := lowerTableExpr(c, t.RightExpr)
		if err != nil {
			return nil, nil, err
		}
		joinCopy := *t
		joinCopy.LeftExpr = leftRef
		joinCopy.RightExpr = rightRef
		return &joinCopy, append(leftDeps, rightDeps...), nil

	case *sqlparser.ParenTableExpr:
		if len(t.Exprs) != 1 {
			return nil, nil, lakeerr.NewUnsupportedDialect("parenthesized multi-table FROM")
		}
		return lowerTableExpr(c, t.Exprs[0])

	default:
		return nil, nil, lakeerr.NewUnsupportedDialect(fmt.Sprintf("FROM expression %T", te))
	}
}

func lowerAliasedTableExpr(c *ctx, t *sqlparser.AliasedTableExpr) (sqlparser.TableExpr, []*types.Stage, error) {
	switch inner := t.Expr.(type) {
	case *sqlparser.Subquery:
		sel, ok := inner.Select.(*sqlparser.Select)
		if !ok {
			return nil, nil, lakeerr.NewUnsupportedDialect("UNION in FROM subquery")
		}
		childStage, err := lowerSelect(c, sel)
		if err != nil {
			return nil, nil, err
		}

		alias := t.As.String()
		if alias == "" {
			alias = childStage.ID
		}
		if childStage.Alias == "" {
			childStage.Alias = alias
		}

		return placeholderRef(childStage.ID, alias), []*types.Stage{childStage}, nil

	case sqlparser.TableName:
		name := inner.Name.String()
		if cteStage, ok := c.ctes[strings.ToLower(name)]; ok {
			alias := t.As.String()
			if alias == "" {
				alias = name
			}
			if cteStage.Alias == "" {
				cteStage.Alias = alias
			}
			return placeholderRef(cteStage.ID, alias), []*types.Stage{cteStage}, nil
		}

		// Not a known CTE: a leaf scan against the object store. The
		// raw source reference is preserved verbatim; resolving it to
		// concrete files is deferred to execution time (Task Builder).
		return t, nil, nil

	default:
		return nil, nil, lakeerr.NewUnsupportedDialect(fmt.Sprintf("FROM expression %T", inner))
	}
}

// placeholderRef builds the synthetic "FROM <stageID> AS <alias>"
// table expression substituted for a resolved dependency.
func placeholderRef(stageID, alias string) *sqlparser.AliasedTableExpr {
	return &sqlparser.AliasedTableExpr{
		Expr: sqlparser.TableName{Name: sqlparser.NewIdentifierCS(stageID)},
		As:   sqlparser.NewIdentifierCS(alias),
	}
}

// PlaceholderText renders the exact substring lowerSelect substitutes
// into a parent's sub_sql for a dependency on stageID substituted with
// the given alias. The Task Builder uses this to locate and replace
// that substring with a concrete READ_<FORMAT>([...]) call — safe as
// a plain string replace because a stage references each dependency
// exactly once by its id.
func PlaceholderText(stageID, alias string) string {
	return sqlparser.String(placeholderRef(stageID, alias))
}

// classifyKind applies the priority order: a JOIN anywhere in the FROM
// list beats everything else, regardless of whether the joined
// relations are CTEs/subqueries or raw object-store leaf scans;
// otherwise GROUP BY or an aggregate function selects Aggregate;
// otherwise ORDER BY selects Sort; otherwise the stage is a Scan.
func classifyKind(sel *sqlparser.Select) types.StageKind {
	if len(sel.From) == 1 && isJoinExpr(sel.From[0]) {
		return types.StageJoin
	}
	if len(sel.GroupBy) > 0 || hasAggregate(sel.SelectExprs) {
		return types.StageAggregate
	}
	if len(sel.OrderBy) > 0 {
		return types.StageSort
	}
	return types.StageScan
}

// isJoinExpr reports whether te is (possibly through parentheses) a
// JoinTableExpr, i.e. the FROM list shape the spec promotes to a Join
// stage, independent of how many of the join's sides happen to be
// lowered dependencies.
func isJoinExpr(te sqlparser.TableExpr) bool {
	switch t := te.(type) {
	case *sqlparser.JoinTableExpr:
		return true
	case *sqlparser.ParenTableExpr:
		if len(t.Exprs) != 1 {
			return false
		}
		return isJoinExpr(t.Exprs[0])
	default:
		return false
	}
}

func hasAggregate(exprs sqlparser.SelectExprs) bool {
	found := false
	visit := func(node sqlparser.SQLNode) (bool, error) {
		if fn, ok := node.(*sqlparser.FuncExpr); ok {
			if aggregateFuncs[strings.ToLower(fn.Name.String())] {
				found = true
				return false, nil
			}
		}
		return true, nil
	}
	for _, e := range exprs {
		_ = sqlparser.Walk(visit, e)
		if found {
			return true
		}
	}
	return false
}

// stageID derives a deterministic, valid-identifier stage id from its
// sub_sql: an MD5 prefix with a leading letter so substitution into a
// parent's FROM list is always syntactically valid.
func stageID(subSQL string) string {
	sum := md5.Sum([]byte(subSQL)) //nolint:gosec // identifier derivation, not cryptographic
	return "s" + hex.EncodeToString(sum[:])[:10]
}

// collectDAG walks the dependency graph reachable from root and
// returns every stage, keyed by id.
func collectDAG(root *types.Stage) map[string]*types.Stage {
	dag := make(map[string]*types.Stage)
	var visit func(s *types.Stage)
	visit = func(s *types.Stage) {
		if _, ok := dag[s.ID]; ok {
			return
		}
		dag[s.ID] = s
		for _, dep := range s.Dependencies {
			visit(dep)
		}
	}
	visit(root)
	return dag
}
