package resource

import (
	"bytes"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/Faultbox/collider/internal/physics"
	"github.com/Faultbox/collider/internal/shape"
	"github.com/Faultbox/collider/internal/vfs"
	"github.com/Faultbox/collider/pkg/formats"
	"github.com/Faultbox/collider/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var identity = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

func encode(t *testing.T, records ...formats.NIFRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, (&formats.NIF{Records: records}).Encode(&buf))
	return buf.Bytes()
}

// meshNIF is a root node with one two-triangle leaf.
func meshNIF(t *testing.T) []byte {
	return encode(t,
		&formats.NIFNode{
			NIFNodeBase: formats.NIFNodeBase{Name: "root", Extra: formats.NoRef, Rotation: identity, Scale: 1},
			Children:    []int32{1},
		},
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "leaf", Extra: formats.NoRef, Rotation: identity, Scale: 1},
			Data:        2,
		},
		&formats.NIFTriShapeData{
			Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
			Triangles: [][3]uint16{{0, 1, 2}, {0, 2, 3}},
		},
	)
}

func newManager(t *testing.T, files fstest.MapFS) (*Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	r := vfs.NewResolver(nil)
	r.Add("", vfs.FromFS(files))

	m := NewManager(r, zap.New(core), shape.DefaultOptions())
	t.Cleanup(func() { _ = m.Close() })
	return m, logs
}

func TestManager_LoadCachesResult(t *testing.T) {
	m, logs := newManager(t, fstest.MapFS{"door.nif": {Data: meshNIF(t)}})

	first, err := m.Load("door.nif", "")
	require.NoError(t, err)
	assert.True(t, first.Collide)
	assert.Equal(t, 2, first.Triangles)
	assert.Equal(t, physics.ShapeTriangleMesh, first.Shape.Type())

	second, err := m.Load("door.nif", vfs.DefaultGroup)
	require.NoError(t, err)
	assert.Same(t, first, second, "empty group means the default group")

	assert.Equal(t, Stats{Entries: 1, Hits: 1, Misses: 1, Builds: 1}, m.Stats())
	assert.Equal(t, 1, logs.FilterMessage("built collision shape").FilterField(zap.String("resource", "door.nif")).Len())
}

func TestManager_ConcurrentLoadsBuildOnce(t *testing.T) {
	m, _ := newManager(t, fstest.MapFS{"door.nif": {Data: meshNIF(t)}})

	const workers = 32
	results := make([]*shape.Result, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := m.Load("door.nif", "")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()

	for _, res := range results {
		assert.Same(t, results[0], res)
	}
	assert.Equal(t, 1, m.Stats().Builds)
}

func TestManager_Failures(t *testing.T) {
	badIndex := encode(t,
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "leaf", Extra: formats.NoRef, Rotation: identity, Scale: 1},
			Data:        1,
		},
		&formats.NIFTriShapeData{
			Vertices:  [][3]float32{{0, 0, 0}},
			Triangles: [][3]uint16{{0, 1, 2}},
		},
	)

	// Every level lists the next one twice.
	doubling := make([]formats.NIFRecord, 0, 42)
	for i := int32(0); i < 40; i++ {
		doubling = append(doubling, &formats.NIFNode{
			NIFNodeBase: formats.NIFNodeBase{Name: "level", Extra: formats.NoRef, Rotation: identity, Scale: 1},
			Children:    []int32{i + 1, i + 1},
		})
	}
	doubling = append(doubling,
		&formats.NIFTriShape{
			NIFNodeBase: formats.NIFNodeBase{Name: "leaf", Extra: formats.NoRef, Rotation: identity, Scale: 1},
			Data:        41,
		},
		&formats.NIFTriShapeData{
			Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Triangles: [][3]uint16{{0, 1, 2}},
		},
	)

	files := fstest.MapFS{
		"doubling.nif": {Data: encode(t, doubling...)},
		"empty.nif":    {Data: encode(t)},
		"extra.nif":    {Data: encode(t, &formats.NIFStringExtra{Next: formats.NoRef, Value: "NCO"})},
		"garbage.nif":  {Data: []byte("not a scene file")},
		"badindex.nif": {Data: badIndex},
	}

	tests := []struct {
		name    string
		wantErr error
	}{
		{"missing.nif", vfs.ErrNotFound},
		{"empty.nif", scene.ErrNoRecords},
		{"extra.nif", scene.ErrRootNotNode},
		{"garbage.nif", formats.ErrInvalidNIFMagic},
		{"badindex.nif", shape.ErrInvalidMesh},
		{"doubling.nif", scene.ErrSharedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, logs := newManager(t, files)

			res, err := m.Load(tt.name, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)

			warnings := logs.FilterLevelExact(zapcore.WarnLevel)
			assert.Equal(t, 1, warnings.Len(), "failures are logged")
			assert.Equal(t, 0, m.Stats().Entries, "failures leave no cache entry")

			// Nothing is cached, so the next call tries again.
			_, err = m.Load(tt.name, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
		})
	}
}

func TestManager_GroupsAreSeparateKeys(t *testing.T) {
	r := vfs.NewResolver(nil)
	r.Add("", vfs.FromFS(fstest.MapFS{"door.nif": {Data: meshNIF(t)}}))
	r.Add("Interior", vfs.FromFS(fstest.MapFS{"door.nif": {Data: meshNIF(t)}}))

	m := NewManager(r, nil, shape.DefaultOptions())
	defer m.Close()

	a, err := m.Load("door.nif", "")
	require.NoError(t, err)
	b, err := m.Load("door.nif", "Interior")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.ElementsMatch(t, []Key{{"door.nif", vfs.DefaultGroup}, {"door.nif", "Interior"}}, m.cache.Keys())
}

func TestManager_UnloadAndClose(t *testing.T) {
	m, _ := newManager(t, fstest.MapFS{"door.nif": {Data: meshNIF(t)}})

	res, err := m.Load("door.nif", "")
	require.NoError(t, err)
	mesh := res.Shape.(*physics.BvhTriangleMeshShape)

	ok, err := m.Unload("door.nif", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, mesh.Mesh(), "unloading releases the shape")

	ok, err = m.Unload("door.nif", "")
	require.NoError(t, err)
	assert.False(t, ok)

	res, err = m.Load("door.nif", "")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Stats().Builds)

	require.NoError(t, m.Close())
	assert.Nil(t, res.Shape.(*physics.BvhTriangleMeshShape).Mesh())
	assert.Equal(t, Stats{}, m.Stats())
}

func TestManager_Scene(t *testing.T) {
	m, _ := newManager(t, fstest.MapFS{"door.nif": {Data: meshNIF(t)}})

	nif, root, err := m.Scene("door.nif", "")
	require.NoError(t, err)
	assert.Len(t, nif.Records, 3)
	assert.Equal(t, "root", root.Name)
	assert.Equal(t, 0, m.Stats().Builds, "Scene does not build")
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "General:door.nif", Key{Name: "door.nif", Group: "General"}.String())
}
