package config

import (
	"flag"
	"strings"
)

// Flags are the command-line overrides shared by every subcommand.
type Flags struct {
	ConfigPath string
	Debug      bool
	Group      string
	Data       sourceList
	LeafSize   int
}

// sourceList collects repeated -data flags.
type sourceList []string

func (s *sourceList) String() string { return strings.Join(*s, ",") }

func (s *sourceList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Group, "group", "", "Resource group to use")
	fs.Var(&f.Data, "data", "Directory or .grf archive to add to the group (repeatable)")
	fs.IntVar(&f.LeafSize, "leaf-size", 0, "Triangles per BVH leaf")
	return f
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Group != "" {
		cfg.Data.DefaultGroup = f.Group
	}
	if len(f.Data) > 0 {
		if cfg.Data.Groups == nil {
			cfg.Data.Groups = make(map[string][]string)
		}
		g := cfg.Data.DefaultGroup
		cfg.Data.Groups[g] = append(cfg.Data.Groups[g], f.Data...)
	}
	if f.LeafSize > 0 {
		cfg.Shape.BVHLeafSize = f.LeafSize
	}
}
