// shapetool is a CLI utility for building and inspecting collision shapes.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/collider/internal/config"
	"github.com/Faultbox/collider/internal/logger"
	"github.com/Faultbox/collider/internal/resource"
	"github.com/Faultbox/collider/internal/shape"
	"github.com/Faultbox/collider/internal/vfs"
)

// errUsage means the command printed its own usage line.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	t := &tool{stdout: stdout, stderr: stderr}
	command := args[0]
	args = args[1:]

	var err error
	switch command {
	case "build":
		err = t.cmdBuild(args)
	case "export":
		err = t.cmdExport(args)
	case "dump":
		err = t.cmdDump(args)
	case "info":
		err = t.cmdInfo(args)
	case "list", "ls":
		err = t.cmdList(args)
	case "pack":
		err = t.cmdPack(args)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `shapetool - collision shape utility

Usage:
  shapetool <command> [options]

Commands:
  build <name>...              Build shapes and print a summary
  export [-o dir] <name>...    Build shapes and write them as .glb files
  dump [-records] <name>       Print the scene tree (or raw records)
  info <name>...               Show record and geometry statistics
  list [-n N] [pattern]        List resources in the group
  pack <dir> <out.grf>         Write a directory into a GRF archive

Shared options:
  -config <file>   Config file (default ./collider.yaml)
  -data <path>     Add a directory or .grf archive (repeatable)
  -group <name>    Resource group (default General)
  -leaf-size <n>   Triangles per BVH leaf
  -debug           Enable debug logging

Examples:
  shapetool build -data ./meshes door.nif
  shapetool export -data data.grf -o out meshes/house.nif
  shapetool list -data data.grf "*.nif"`)
}

type tool struct {
	stdout io.Writer
	stderr io.Writer
}

// env is what every resource-reading command works with.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	resolver *vfs.Resolver
	manager  *resource.Manager
}

func (t *tool) flagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(t.stderr)
	return fs, config.RegisterFlags(fs)
}

func (t *tool) setup(flags *config.Flags) (*env, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.FileConfig{
			Path:       cfg.Logging.LogFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	if err := logger.Init(cfg.Logging.Level, fileCfg, true); err != nil {
		return nil, err
	}
	log := logger.Log
	logger.Sugar.Debugf("config: %+v", cfg)

	resolver := vfs.NewResolver(log.Named("vfs"))
	for _, group := range cfg.GroupNames() {
		for _, source := range cfg.Data.Groups[group] {
			if err := resolver.AddPath(group, source); err != nil {
				log.Warn("skipping resource location",
					zap.String("group", group),
					zap.String("path", source),
					zap.Error(err))
			}
		}
	}

	opts := shape.Options{
		QuantizedBVH: cfg.Shape.QuantizedBVH,
		LeafSize:     cfg.Shape.BVHLeafSize,
	}
	return &env{
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		manager:  resource.NewManager(resolver, log.Named("resource"), opts),
	}, nil
}

func (e *env) group() string {
	return e.cfg.Data.DefaultGroup
}

func (e *env) Close() {
	if err := e.manager.Close(); err != nil {
		e.log.Warn("releasing shapes", zap.Error(err))
	}
	if err := e.resolver.Close(); err != nil {
		e.log.Warn("closing resource locations", zap.Error(err))
	}
	logger.Sync()
}
