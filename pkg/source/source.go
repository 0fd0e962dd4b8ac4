// Package source implements the Source Resolver (C2): given a table
// expression that names an object-store glob, enumerate the concrete
// file keys and the deduplicated parent-directory prefixes it covers.
package source

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/tobiasegelund/duckingit/pkg/blobstore"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

// Resolver resolves s3:// glob expressions against a Store. The Store
// is assumed to already be scoped to the bucket named in any URI this
// Resolver is asked to resolve (see blobstore.S3Store's doc comment); the
// bucket name from the URI is used only to reconstruct the full file
// URIs handed back to the caller, not to address the Store itself.
type Resolver struct {
	Store blobstore.Store
}

// New returns a Resolver backed by store.
func New(store blobstore.Store) *Resolver {
	return &Resolver{Store: store}
}

const scheme = "s3://"

// ParseURI splits a recognized object-store URI into its bucket and
// glob path. Any "s3://" URI is accepted as the single supported
// scheme; other schemes fail with InvalidSource.
func ParseURI(uri string) (bucket, globPath string, err error) {
	if !strings.HasPrefix(uri, scheme) {
		return "", "", lakeerr.NewInvalidSource(uri)
	}
	rest := uri[len(scheme):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", lakeerr.NewInvalidSource(uri)
	}
	return rest[:idx], rest[idx+1:], nil
}

// Resolve runs the glob against the store and returns a deduplicated,
// sorted list of full "s3://bucket/key" file URIs. Fails with
// InvalidSource for an unrecognized URI, SourceNotFound if the glob
// matches zero objects.
func (r *Resolver) Resolve(ctx context.Context, uri string) ([]string, error) {
	bucket, globPath, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	re, staticPrefix, err := compileGlob(globPath)
	if err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindInvalidSource, "compiling glob %s", uri)
	}

	objs, err := r.Store.List(ctx, staticPrefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(objs))
	var files []string
	for _, obj := range objs {
		if !re.MatchString(obj.Key) {
			continue
		}
		full := scheme + bucket + "/" + obj.Key
		if _, ok := seen[full]; ok {
			continue
		}
		seen[full] = struct{}{}
		files = append(files, full)
	}

	if len(files) == 0 {
		return nil, lakeerr.NewSourceNotFound(uri)
	}

	sort.Strings(files)
	return files, nil
}

// Prefixes groups Resolve's file list by parent directory, returning
// one deduplicated "<dir>/*" prefix per unique directory containing a
// matching file, implemented directly against the BlobStore rather
// than re-entering the SQL engine for the glob.
func (r *Resolver) Prefixes(ctx context.Context, uri string) ([]string, error) {
	files, err := r.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(files))
	var prefixes []string
	for _, f := range files {
		dir := f[:strings.LastIndex(f, "/")]
		p := dir + "/*"
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		prefixes = append(prefixes, p)
	}

	sort.Strings(prefixes)
	return prefixes, nil
}

// compileGlob turns a glob path (e.g. "2023/*.parquet" or "**/*.json")
// into an anchored regexp plus the static (wildcard-free) prefix that
// can be used to narrow a List call. "**" matches across directory
// separators; a lone "*" does not.
func compileGlob(globPath string) (*regexp.Regexp, string, error) {
	staticPrefix := globPath
	if idx := strings.IndexAny(globPath, "*?"); idx >= 0 {
		staticPrefix = globPath[:idx]
	}

	var b strings.Builder
	b.WriteByte('^')
	i := 0
	for i < len(globPath) {
		c := globPath[i]
		switch {
		case strings.HasPrefix(globPath[i:], "**"):
			b.WriteString(".*")
			i += 2
		case c == '*':
			b.WriteString("[^/]*")
			i++
		case c == '?':
			b.WriteString("[^/]")
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, "", err
	}
	return re, staticPrefix, nil
}
