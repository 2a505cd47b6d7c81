// Package resource loads collision shapes by name and caches them.
package resource

import (
	"github.com/Faultbox/collider/internal/shape"
	"github.com/Faultbox/collider/internal/vfs"
	"github.com/Faultbox/collider/pkg/formats"
	"github.com/Faultbox/collider/pkg/scene"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager resolves scene files through a VFS, builds their collision
// shapes and caches the results by (name, group). Concurrent loads of the
// same key share a single build.
type Manager struct {
	vfs     *vfs.Resolver
	builder *shape.Builder
	cache   *Cache
	flight  singleflight.Group
	log     *zap.Logger
}

// NewManager creates a manager reading from resolver.
func NewManager(resolver *vfs.Resolver, log *zap.Logger, opts shape.Options) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		vfs:     resolver,
		builder: shape.NewBuilder(log.Named("shape"), opts),
		cache:   NewCache(),
		log:     log,
	}
}

func key(name, group string) Key {
	if group == "" {
		group = vfs.DefaultGroup
	}
	return Key{Name: name, Group: group}
}

// Load returns the shape for name, building it on first use. Failed builds
// are logged and leave nothing in the cache, so a later call retries.
func (m *Manager) Load(name, group string) (*shape.Result, error) {
	k := key(name, group)
	if res, ok := m.cache.Get(k); ok {
		return res, nil
	}

	v, err, shared := m.flight.Do(k.Group+"\x00"+k.Name, func() (any, error) {
		// A build that finished between Get and Do already stored it.
		if res, ok := m.cache.peek(k); ok {
			return res, nil
		}
		res, err := m.build(k)
		if err != nil {
			return nil, err
		}
		m.cache.Set(k, res)
		return res, nil
	})
	if err != nil {
		m.log.Warn("failed to load collision shape",
			zap.String("resource", k.Name),
			zap.String("group", k.Group),
			zap.Error(err))
		return nil, err
	}
	if shared {
		m.log.Debug("shared in-flight build", zap.Stringer("key", k))
	}
	return v.(*shape.Result), nil
}

// Scene resolves and decodes name without building a shape.
func (m *Manager) Scene(name, group string) (*formats.NIF, *scene.Node, error) {
	k := key(name, group)

	rc, err := m.vfs.Open(k.Name, k.Group)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	nif, err := formats.DecodeNIF(rc)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding %s", k.Name)
	}
	root, err := scene.FromNIF(nif)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading scene %s", k.Name)
	}
	return nif, root, nil
}

func (m *Manager) build(k Key) (*shape.Result, error) {
	_, root, err := m.Scene(k.Name, k.Group)
	if err != nil {
		return nil, err
	}

	res, err := m.builder.Build(root)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", k.Name)
	}

	m.log.Info("built collision shape",
		zap.String("resource", k.Name),
		zap.String("group", k.Group),
		zap.Stringer("type", res.Shape.Type()),
		zap.Int("triangles", res.Triangles),
		zap.Bool("collide", res.Collide))
	return res, nil
}

// Unload releases a cached shape. It reports whether one was cached.
func (m *Manager) Unload(name, group string) (bool, error) {
	return m.cache.Remove(key(name, group))
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	return m.cache.Stats()
}

// Close releases every cached shape.
func (m *Manager) Close() error {
	return m.cache.Clear()
}
