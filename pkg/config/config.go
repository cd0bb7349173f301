// Package config loads jarmerge settings and batch job lists from TOML.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/merge"
)

// DefaultName is the config file looked up when none is given.
const DefaultName = "jarmerge.toml"

// Settings are the merge options shared by the top level and every job.
type Settings struct {
	ResourceConflict        string   `toml:"resource_conflict"`
	Exclude                 []string `toml:"exclude"`
	Compression             string   `toml:"compression"`
	AnnotateOneSidedClasses *bool    `toml:"annotate_one_sided_classes"`
}

// Job is one client/server/output triple. Unset settings inherit from the
// top level of the file.
type Job struct {
	Client string `toml:"client"`
	Server string `toml:"server"`
	Output string `toml:"output"`
	Settings
}

// File is a decoded jarmerge.toml.
type File struct {
	Job
	Jobs []Job `toml:"job"`

	// Dir is the directory relative paths are resolved against.
	Dir string `toml:"-"`
}

// Load reads and decodes a config file. Relative paths inside it resolve
// against the file's directory.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Dir = abs
	return cfg, nil
}

// Decode parses TOML from r. Unknown keys are an error.
func Decode(r io.Reader) (*File, error) {
	var cfg File
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// Validate reports every invalid setting in the file at once. Paths are not
// required here; callers may supply them from flags.
func (f *File) Validate() error {
	var errs *multierror.Error
	check := func(where string, s Settings) {
		if _, err := merge.ParseResourcePolicy(s.ResourceConflict); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if _, err := archive.ParseMethod(s.Compression); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}
	check("top level", f.Settings)
	for i, j := range f.Jobs {
		where := fmt.Sprintf("job %d", i+1)
		check(where, j.Settings)
		for _, p := range []struct{ name, value string }{{"client", j.Client}, {"server", j.Server}, {"output", j.Output}} {
			if p.value == "" && f.inherited(p.name) == "" {
				errs = multierror.Append(errs, fmt.Errorf("%s: %s path is required", where, p.name))
			}
		}
	}
	return errs.ErrorOrNil()
}

func (f *File) inherited(name string) string {
	switch name {
	case "client":
		return f.Client
	case "server":
		return f.Server
	}
	return ""
}

// MergeConfig resolves the top level of the file into a merge config.
func (f *File) MergeConfig() (merge.Config, error) {
	return f.resolve(f.Job)
}

// JobConfigs resolves every [[job]] table, inheriting unset values from the top
// level. Outputs are never inherited.
func (f *File) JobConfigs() ([]merge.Config, error) {
	out := make([]merge.Config, 0, len(f.Jobs))
	for i, j := range f.Jobs {
		if j.Client == "" {
			j.Client = f.Client
		}
		if j.Server == "" {
			j.Server = f.Server
		}
		if j.ResourceConflict == "" {
			j.ResourceConflict = f.ResourceConflict
		}
		if j.Exclude == nil {
			j.Exclude = f.Exclude
		}
		if j.Compression == "" {
			j.Compression = f.Compression
		}
		if j.AnnotateOneSidedClasses == nil {
			j.AnnotateOneSidedClasses = f.AnnotateOneSidedClasses
		}
		cfg, err := f.resolve(j)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (f *File) resolve(j Job) (merge.Config, error) {
	policy, err := merge.ParseResourcePolicy(j.ResourceConflict)
	if err != nil {
		return merge.Config{}, err
	}
	method, err := archive.ParseMethod(j.Compression)
	if err != nil {
		return merge.Config{}, err
	}
	cfg := merge.Config{
		ClientPath:  f.path(j.Client),
		ServerPath:  f.path(j.Server),
		OutputPath:  f.path(j.Output),
		Compression: method,
		Options: merge.Options{
			ResourcePolicy: policy,
			Exclude:        j.Exclude,
		},
	}
	if j.AnnotateOneSidedClasses != nil {
		cfg.AnnotateOneSidedClasses = *j.AnnotateOneSidedClasses
	}
	return cfg, nil
}

func (f *File) path(p string) string {
	if p == "" || filepath.IsAbs(p) || f.Dir == "" {
		return p
	}
	return filepath.Join(f.Dir, p)
}
