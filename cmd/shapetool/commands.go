package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/collider/internal/export"
	"github.com/Faultbox/collider/internal/physics"
	"github.com/Faultbox/collider/internal/shape"
	"github.com/Faultbox/collider/internal/vfs"
)

func (t *tool) usage(line string) error {
	fmt.Fprintln(t.stderr, "Usage: shapetool "+line)
	return errUsage
}

func (t *tool) cmdBuild(args []string) error {
	set, flags := t.flagSet("build")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 1 {
		return t.usage("build [options] <name>...")
	}

	e, err := t.setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	failed := 0
	for _, name := range set.Args() {
		res, err := e.manager.Load(name, e.group())
		if err != nil {
			fmt.Fprintf(t.stderr, "%s: %v\n", name, err)
			failed++
			continue
		}
		t.printShape(name, res)
	}

	stats := e.manager.Stats()
	fmt.Fprintf(t.stderr, "\n(%d built, %d failed)\n", stats.Builds, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d shapes failed", failed, set.NArg())
	}
	return nil
}

func (t *tool) printShape(name string, res *shape.Result) {
	b := res.Shape.AABB()
	switch s := res.Shape.(type) {
	case *physics.BoxShape:
		h := s.HalfExtents()
		fmt.Fprintf(t.stdout, "%s\tBox\thalf=(%g %g %g)\tcollide=%v\n", name, h[0], h[1], h[2], res.Collide)
	case *physics.BvhTriangleMeshShape:
		nodes := 0
		if bvh := s.BVH(); bvh != nil {
			nodes = bvh.NumNodes()
		}
		fmt.Fprintf(t.stdout, "%s\tTriangleMesh\ttriangles=%d\tnodes=%d\tcollide=%v\tbounds=(%g %g %g)-(%g %g %g)\n",
			name, res.Triangles, nodes, res.Collide,
			b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
	}
}

func (t *tool) cmdExport(args []string) error {
	set, flags := t.flagSet("export")
	outDir := set.String("o", "", "Output directory (default export.output_dir)")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 1 {
		return t.usage("export [options] [-o dir] <name>...")
	}

	e, err := t.setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	dir := e.cfg.Export.OutputDir
	if *outDir != "" {
		dir = *outDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, name := range set.Args() {
		res, err := e.manager.Load(name, e.group())
		if err != nil {
			return err
		}

		base := strings.TrimSuffix(path.Base(filepath.ToSlash(name)), path.Ext(filepath.ToSlash(name)))
		outPath := filepath.Join(dir, base+".glb")
		if err := writeGLB(outPath, res, base); err != nil {
			return fmt.Errorf("exporting %s: %w", name, err)
		}

		e.log.Debug("exported shape", zap.String("resource", name), zap.String("path", outPath))
		fmt.Fprintf(t.stdout, "Exported: %s (%s)\n", outPath, res.Shape.Type())
	}
	return nil
}

func writeGLB(outPath string, res *shape.Result, name string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := export.WriteGLB(f, res.Shape, name); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (t *tool) cmdDump(args []string) error {
	set, flags := t.flagSet("dump")
	records := set.Bool("records", false, "Dump raw file records instead of the scene tree")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 1 {
		return t.usage("dump [options] [-records] <name>")
	}

	e, err := t.setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	nif, root, err := e.manager.Scene(set.Arg(0), e.group())
	if err != nil {
		return err
	}
	if *records {
		export.Dump(t.stdout, nif.Records)
	} else {
		export.Dump(t.stdout, root)
	}
	return nil
}

func (t *tool) cmdInfo(args []string) error {
	set, flags := t.flagSet("info")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 1 {
		return t.usage("info [options] <name>...")
	}

	e, err := t.setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	for i, name := range set.Args() {
		nif, root, err := e.manager.Scene(name, e.group())
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(t.stdout)
		}

		stats := root.CountStats()
		fmt.Fprintf(t.stdout, "Resource:  %s (group %s)\n", name, e.group())
		fmt.Fprintf(t.stdout, "Version:   %d\n", nif.Version)
		fmt.Fprintf(t.stdout, "Records:   %d\n", len(nif.Records))
		for _, c := range nif.CountByType() {
			fmt.Fprintf(t.stdout, "  %-20s %d\n", c.Type, c.Count)
		}
		fmt.Fprintf(t.stdout, "Nodes:     %d (%d leaves, %d collision roots)\n", stats.Nodes, stats.Leaves, stats.Markers)
		fmt.Fprintf(t.stdout, "Geometry:  %d vertices, %d triangles\n", stats.Vertices, stats.Triangles)
		fmt.Fprintf(t.stdout, "Collision: marker=%v\n", shape.HasCollisionMarker(root))
	}
	return nil
}

func (t *tool) cmdList(args []string) error {
	set, flags := t.flagSet("list")
	limit := set.Int("n", 0, "Limit output to N files (0 = all)")
	if err := set.Parse(args); err != nil {
		return err
	}

	e, err := t.setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	pattern := ""
	if set.NArg() > 0 {
		pattern = strings.ToLower(set.Arg(0))
	}

	count := 0
	for _, name := range e.resolver.List(e.group()) {
		if pattern != "" {
			matched, _ := path.Match(pattern, strings.ToLower(path.Base(name)))
			if !matched && !strings.Contains(strings.ToLower(name), pattern) {
				continue
			}
		}
		fmt.Fprintln(t.stdout, name)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(t.stderr, "\n(%d files matched)\n", count)
	}
	return nil
}

func (t *tool) cmdPack(args []string) error {
	set := flag.NewFlagSet("pack", flag.ContinueOnError)
	set.SetOutput(t.stderr)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return t.usage("pack <dir> <out.grf>")
	}
	srcDir, outPath := set.Arg(0), set.Arg(1)

	files := make(map[string][]byte)
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading %s: %w", srcDir, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := vfs.WriteGRF(out, files); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(t.stdout, "Packed: %s (%d files)\n", outPath, len(files))
	return nil
}
