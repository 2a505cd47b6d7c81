// Package vfs resolves resource names to byte streams. Names are looked up
// in resource groups; each group is a stack of sources (directories or GRF
// archives) searched from the most recently added one down.
package vfs

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultGroup is used when no group is given.
const DefaultGroup = "General"

// ErrNotFound is returned when no source in a group has the file.
var ErrNotFound = errors.New("file not found")

// FS is a read-only source of named files.
type FS interface {
	IsFile(name string) bool
	Open(name string) (io.ReadCloser, error)
	List() []string
	Close() error
}

// Resolver maps (name, group) pairs to files.
type Resolver struct {
	mu     sync.RWMutex
	groups map[string][]FS
	log    *zap.Logger
}

// NewResolver creates an empty resolver. A nil logger disables logging.
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		groups: make(map[string][]FS),
		log:    log,
	}
}

func groupName(group string) string {
	if group == "" {
		return DefaultGroup
	}
	return group
}

// Add pushes a source onto a group. Later sources take priority.
func (r *Resolver) Add(group string, fs FS) {
	group = groupName(group)

	r.mu.Lock()
	r.groups[group] = append(r.groups[group], fs)
	r.mu.Unlock()
}

// AddPath adds a directory or, for a .grf file, an archive to a group.
func (r *Resolver) AddPath(group, path string) error {
	var (
		fs  FS
		err error
	)
	if strings.EqualFold(extension(path), ".grf") {
		fs, err = OpenGRF(path)
		if err != nil {
			return errors.Wrapf(err, "opening archive %s", path)
		}
	} else {
		fs, err = Dir(path)
		if err != nil {
			return err
		}
	}

	r.Add(group, fs)
	r.log.Info("added resource location",
		zap.String("group", groupName(group)),
		zap.String("path", path),
		zap.Int("files", len(fs.List())))
	return nil
}

func extension(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 && !strings.ContainsAny(path[i:], `/\`) {
		return path[i:]
	}
	return ""
}

func (r *Resolver) find(name, group string) FS {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := r.groups[groupName(group)]
	for i := len(sources) - 1; i >= 0; i-- {
		if sources[i].IsFile(name) {
			return sources[i]
		}
	}
	return nil
}

// IsFile reports whether name exists in group.
func (r *Resolver) IsFile(name, group string) bool {
	return r.find(name, group) != nil
}

// Open opens name from the highest priority source in group that has it.
func (r *Resolver) Open(name, group string) (io.ReadCloser, error) {
	fs := r.find(name, group)
	if fs == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s in group %s", name, groupName(group))
	}
	return fs.Open(name)
}

// ReadFile returns the contents of name.
func (r *Resolver) ReadFile(name, group string) ([]byte, error) {
	rc, err := r.Open(name, group)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return data, nil
}

// List returns the sorted, de-duplicated file names visible in group.
func (r *Resolver) List(group string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, fs := range r.groups[groupName(group)] {
		for _, name := range fs.List() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Groups returns the sorted group names.
func (r *Resolver) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]string, 0, len(r.groups))
	for g := range r.groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Close closes every source and empties the resolver.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for _, sources := range r.groups {
		for _, fs := range sources {
			err = multierr.Append(err, fs.Close())
		}
	}
	r.groups = make(map[string][]FS)
	return err
}
