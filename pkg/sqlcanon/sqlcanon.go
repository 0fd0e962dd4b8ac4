// Package sqlcanon implements the Query Parser & Canonicalizer (C1):
// parse SQL text, normalize it to a stable textual form, and derive a
// deterministic content fingerprint from that form.
//
// Canonicalization is delegated to vitess's SQL printer
// (sqlparser.String), which already applies a total, idempotent
// rewrite — stable keyword casing, stable formatting, user identifiers
// preserved verbatim — so two textually different but semantically
// identical statements reprint to the same string.
//
// vitess speaks the MySQL dialect: it has no grammar for DuckDB's
// table-reader calls over a bracketed file-list literal, e.g.
// READ_PARQUET(['s3://bucket/2023/*']) — the '[' is a lexer error, and
// a function call isn't a valid table_factor. Every reader call is
// therefore swapped for a synthetic, parseable identifier before the
// text reaches sqlparser.Parse, and restored verbatim in the printed
// output — the role sqlglot's read="duckdb" dialect plays in the
// original implementation.
package sqlcanon

import (
	"crypto/md5" //nolint:gosec // fingerprint use, not cryptographic
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/types"
	"vitess.io/vitess/go/vt/sqlparser"
)

// readerCallPattern matches one DuckDB table-reader call over a
// bracketed file-list literal: READ_PARQUET, READ_JSON_AUTO, or
// READ_CSV_AUTO applied to a '[' ... ']' argument. The bracket contents
// aren't otherwise inspected here — the whole match is captured and
// restored verbatim, so any file list DuckDB accepts round-trips.
var readerCallPattern = regexp.MustCompile(`(?i)\b(?:READ_PARQUET|READ_JSON_AUTO|READ_CSV_AUTO)\s*\(\s*\[[^\]]*\]\s*\)`)

// Placeholders maps a synthetic identifier ExtractReaderCalls minted
// back to the literal reader-call text it stands in for.
type Placeholders map[string]string

func placeholderName(seq int) string {
	return fmt.Sprintf("reader_call_placeholder_%d_", seq)
}

// ExtractReaderCalls replaces every reader call in sql with a
// synthetic plain identifier vitess can parse as an ordinary table
// name, numbering placeholders starting at seq. It returns the
// rewritten text, a map from each placeholder back to the call text it
// replaced, and the next unused seq — so a caller parsing several
// independent fragments of one query (a CTE's body, then the main
// body) can thread seq through successive calls and keep placeholders
// unique across all of them.
func ExtractReaderCalls(sql string, seq int) (rewritten string, placeholders Placeholders, next int) {
	placeholders = make(Placeholders)
	rewritten = readerCallPattern.ReplaceAllStringFunc(sql, func(call string) string {
		name := placeholderName(seq)
		placeholders[name] = call
		seq++
		return name
	})
	return rewritten, placeholders, seq
}

// RestoreReaderCalls substitutes every placeholder ExtractReaderCalls
// introduced into sql back with the original reader-call text it
// replaced.
func RestoreReaderCalls(sql string, placeholders Placeholders) string {
	for name, call := range placeholders {
		sql = strings.ReplaceAll(sql, name, call)
	}
	return sql
}

// Parse parses and canonicalizes sql, returning a Query with its
// Fingerprint already computed. Fails with ParseError if sql cannot be
// parsed.
func Parse(sql string) (*types.Query, error) {
	rewritten, placeholders, _ := ExtractReaderCalls(sql, 0)

	stmt, err := sqlparser.Parse(rewritten)
	if err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindParseError, "parsing SQL")
	}

	canonical := RestoreReaderCalls(sqlparser.String(stmt), placeholders)

	return &types.Query{
		SQL:         canonical,
		AST:         stmt,
		Fingerprint: Fingerprint(canonical),
	}, nil
}

// Fingerprint computes the MD5 hex digest of canonical SQL text. Used
// both as the Query's fingerprint and, applied to a Task's rewritten
// subquery, as the Task's fingerprint and output object base name.
func Fingerprint(canonicalSQL string) string {
	sum := md5.Sum([]byte(canonicalSQL)) //nolint:gosec // non-cryptographic use: identifier derivation, not security
	return hex.EncodeToString(sum[:])
}

// Canonicalize reprints stmt through the same printer Parse uses,
// without recomputing a fingerprint, for a caller holding a sub-AST
// rather than a freshly parsed top-level statement. Nothing in this
// module calls it at present; the planner prints sub-ASTs itself.
func Canonicalize(stmt sqlparser.SQLNode) string {
	return sqlparser.String(stmt)
}
