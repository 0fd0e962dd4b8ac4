package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

// LocalStore is a plain-directory Store binding for local/dev/test use,
// letting the orchestrator run end-to-end without a real bucket.
// Object keys map directly onto paths under root.
//
// This is deliberately a directory tree rather than an embedded KV
// store: the embedded engine (pkg/engine) writes a task's result with
// DuckDB's own
// `COPY ... TO '<path>'`, which needs a real filesystem path as its
// target — a single-file KV store can't serve as that target without
// an extra byte-copy step on every task completion. A directory tree
// lets the engine and this Store agree on the same path with no
// translation, keeping the local binding a true end-to-end stand-in
// for the real S3 binding.
type LocalStore struct {
	root string
}

// NewLocalStore returns a Store rooted at root, creating it if absent.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindInternal, "creating local blobstore root %s", root)
	}
	return &LocalStore{root: root}, nil
}

// Close is a no-op; kept so LocalStore satisfies the same
// construct/Close shape as the S3 binding's client lifecycle.
func (s *LocalStore) Close() error { return nil }

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objs = append(objs, Object{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, lakeerr.Wrap(err, lakeerr.KindInternal, "listing local blobstore")
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	return objs, nil
}

func (s *LocalStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lakeerr.Newf(lakeerr.KindSourceNotFound, "no object at key %s", key)
		}
		return nil, lakeerr.Wrapf(err, lakeerr.KindInternal, "reading local object %s", key)
	}
	return data, nil
}

func (s *LocalStore) Write(ctx context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return lakeerr.Wrapf(err, lakeerr.KindInternal, "creating directory for %s", key)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return lakeerr.Wrapf(err, lakeerr.KindInternal, "writing local object %s", key)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, lakeerr.Wrapf(err, lakeerr.KindInternal, "checking local object %s", key)
}

// Path exposes the real filesystem path backing key, for callers (the
// in-process worker pool) that must hand DuckDB's COPY/READ_* a literal
// path rather than going through Store's byte-oriented methods.
func (s *LocalStore) Path(key string) string {
	return s.path(key)
}
