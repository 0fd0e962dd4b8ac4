// Package taskbuilder implements the Task Builder (C4): it binds a
// Stage's still-abstract sub_sql to concrete input files and produces
// one or more Tasks, fanning a Scan stage out across balanced chunks
// and collapsing every other stage kind into a single wide task.
package taskbuilder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/planner"
	"github.com/tobiasegelund/duckingit/pkg/sqlcanon"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

// readerCallRe locates a leaf Scan's source reference: a DuckDB
// table-reader call with a single-element file-list literal, e.g.
// READ_PARQUET(['s3://bucket/2023/*']). Located textually rather than
// through the SQL parser's AST, since the raw source reference is
// preserved verbatim until this rewrite.
var readerCallRe = regexp.MustCompile(`(?i)\b(READ_PARQUET|READ_JSON_AUTO|READ_CSV_AUTO)\s*\(\s*\[\s*'([^']*)'\s*\]\s*\)`)

// Format identifies which DuckDB table function reads a leaf scan's
// resolved files.
type Format string

const (
	FormatParquet Format = "READ_PARQUET"
	FormatJSON    Format = "READ_JSON_AUTO"
	FormatCSV     Format = "READ_CSV_AUTO"
)

// readerFormat maps a reader call's function name, as captured by
// readerCallRe's first group, to its Format. The source glob itself is
// often extension-less (an S3 prefix wildcard), so the format always
// follows the declared reader, never the URI.
func readerFormat(readerName string) Format {
	return Format(strings.ToUpper(readerName))
}

func readerCall(format Format, files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", "''") + "'"
	}
	return fmt.Sprintf("%s([%s])", format, strings.Join(quoted, ", "))
}

// outputExt maps a reader format to the output object's extension, per
// spec.md §6's reader/writer table: a task's output is written in the
// format declared by whichever reader produced its input, so the
// worker can infer what to write from the key it's handed without a
// third field on the invocation payload.
func outputExt(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	default:
		return "parquet"
	}
}

// slot is one FROM-list placeholder in a stage's sub_sql that the Task
// Builder must bind to concrete files: either the raw source reference
// of a leaf Scan, or a dependency stage's placeholder identifier.
type slot struct {
	matchText string // exact substring in SubSQL to replace
	format    Format
	files     []string
}

// DepOutputs maps a dependency stage's id to the output keys its tasks
// produced.
type DepOutputs map[string][]string

// Build binds stage's sub_sql to concrete inputs and returns its
// Tasks. For a leaf Scan, sourceFiles is the Source Resolver's output
// for the stage's source reference; for any other stage, depOutputs
// supplies each dependency's output keys. maxInvocations bounds a Scan
// stage's fan-out (0 means auto: one task per input file, up to the
// number of files). outputPrefix is the destination root each task's
// output key is written under.
func Build(stage *types.Stage, sourceFiles []string, depOutputs DepOutputs, maxInvocations int, outputPrefix string) ([]*types.Task, error) {
	slots, err := buildSlots(stage, sourceFiles, depOutputs)
	if err != nil {
		return nil, err
	}

	outputPrefix = strings.TrimSuffix(outputPrefix, "/")

	if stage.Kind.FanOutPolicy() == types.FanOutPartitionable {
		return buildPartitioned(stage, slots[0], maxInvocations, outputPrefix)
	}
	return buildSingle(stage, slots, outputPrefix)
}

// LeafSourceURI extracts the raw source glob a leaf Scan stage's
// sub_sql references, for the Controller to hand to the Source
// Resolver. Fails with InvalidSource if stage has no recognizable
// source reference.
func LeafSourceURI(stage *types.Stage) (string, error) {
	match := readerCallRe.FindStringSubmatch(stage.SubSQL)
	if match == nil {
		return "", lakeerr.Newf(lakeerr.KindInvalidSource, "stage %s has no recognizable source reference", stage.ID)
	}
	return match[2], nil
}

func buildSlots(stage *types.Stage, sourceFiles []string, depOutputs DepOutputs) ([]slot, error) {
	if stage.IsLeaf() {
		match := readerCallRe.FindStringSubmatch(stage.SubSQL)
		if match == nil {
			return nil, lakeerr.Newf(lakeerr.KindInvalidSource, "stage %s has no recognizable source reference", stage.ID)
		}
		if len(sourceFiles) == 0 {
			return nil, lakeerr.NewSourceNotFound(match[2])
		}
		return []slot{{
			matchText: match[0],
			format:    readerFormat(match[1]),
			files:     sourceFiles,
		}}, nil
	}

	ids := make([]string, 0, len(stage.Dependencies))
	for id := range stage.Dependencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	slots := make([]slot, 0, len(ids))
	for _, id := range ids {
		dep := stage.Dependencies[id]
		files := depOutputs[id]
		if len(files) == 0 {
			return nil, lakeerr.Newf(lakeerr.KindInternal, "missing outputs for dependency %s", id)
		}
		alias := dep.Alias
		if alias == "" {
			alias = id
		}
		format := FormatParquet
		switch {
		case strings.HasSuffix(files[0], ".csv"):
			format = FormatCSV
		case strings.HasSuffix(files[0], ".json"):
			format = FormatJSON
		}
		slots = append(slots, slot{
			matchText: planner.PlaceholderText(id, alias),
			format:    format,
			files:     files,
		})
	}
	if len(slots) == 0 {
		return nil, lakeerr.Newf(lakeerr.KindInternal, "stage %s has no dependency to bind", stage.ID)
	}
	return slots, nil
}

// buildPartitioned fans a Scan stage out across balanced chunks of its
// one slot's files, one Task per chunk.
func buildPartitioned(stage *types.Stage, s slot, maxInvocations int, outputPrefix string) ([]*types.Task, error) {
	fanout := maxInvocations
	if fanout <= 0 || fanout > len(s.files) {
		fanout = len(s.files)
	}

	chunks := ChunkStrings(s.files, fanout)
	tasks := make([]*types.Task, 0, len(chunks))
	for _, chunk := range chunks {
		subquery := strings.Replace(stage.SubSQL, s.matchText, readerCall(s.format, chunk), 1)
		tasks = append(tasks, newTask(subquery, outputPrefix, outputExt(s.format)))
	}
	return tasks, nil
}

// buildSingle binds every slot's full file list in place and returns
// the stage's single wide Task. The output extension follows the
// first slot's format: a non-leaf stage's slots are dependency outputs,
// each read with the reader matching its outputs' extension (.csv,
// .json, otherwise Parquet), and a leaf stage (e.g. an ungrouped-CTE
// Aggregate reading straight off the object store) has exactly one.
func buildSingle(stage *types.Stage, slots []slot, outputPrefix string) ([]*types.Task, error) {
	subquery := stage.SubSQL
	for _, s := range slots {
		subquery = strings.Replace(subquery, s.matchText, readerCall(s.format, s.files), 1)
	}
	return []*types.Task{newTask(subquery, outputPrefix, outputExt(slots[0].format))}, nil
}

func newTask(subquery, outputPrefix, ext string) *types.Task {
	fp := sqlcanon.Fingerprint(subquery)
	return &types.Task{
		Subquery:    subquery,
		Fingerprint: fp,
		OutputKey:   fmt.Sprintf("%s/%s.%s", outputPrefix, fp, ext),
	}
}

// ChunkStrings splits items into at most k balanced, contiguous
// chunks: the first (n mod k) chunks get ⌈n/k⌉ items, the rest get
// ⌊n/k⌋. k is clamped to len(items); k<=0 yields nil.
func ChunkStrings(items []string, k int) [][]string {
	n := len(items)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	quotient, remainder := n/k, n%k
	chunks := make([][]string, 0, k)
	idx := 0
	for i := 0; i < k; i++ {
		size := quotient
		if i < remainder {
			size++
		}
		chunks = append(chunks, items[idx:idx+size])
		idx += size
	}
	return chunks
}
