package skills

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	skillFileName = "SKILL.md"
	skillFileExt  = ".md"
)

var skillNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// DefaultSkillDirs are searched when no directories are configured. The
// shared registry takes precedence over project-local skills.
var DefaultSkillDirs = []string{
	filepath.Join("files", "skills"),
	filepath.Join(".opencode", "skills"),
}

// Discovery locates skill documents in a list of directories. Earlier
// directories take precedence when two of them provide the same skill.
// Nothing is cached: every lookup reads and parses from disk.
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithBaseDir resolves the default skill directories relative to dir
func WithBaseDir(dir string) Option {
	return func(d *Discovery) error {
		if dir == "" {
			return errors.New("base directory must not be empty")
		}
		d.skillDirs = make([]string, len(DefaultSkillDirs))
		for i, sub := range DefaultSkillDirs {
			d.skillDirs[i] = filepath.Join(dir, sub)
		}
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if len(d.skillDirs) == 0 {
		d.skillDirs = append([]string(nil), DefaultSkillDirs...)
	}

	return d, nil
}

// Dirs returns the directories searched, in precedence order
func (d *Discovery) Dirs() []string {
	return append([]string(nil), d.skillDirs...)
}

// ValidateName rejects names that could escape the skill directories
func ValidateName(name string) error {
	if !skillNamePattern.MatchString(name) {
		return errors.Errorf("invalid skill name %q: use alphanumeric characters, hyphens and underscores only", name)
	}
	return nil
}

// Locate returns the path of the document providing the named skill
func (d *Discovery) Locate(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	for _, dir := range d.skillDirs {
		for _, candidate := range candidatePaths(dir, name) {
			if isRegularFile(candidate) {
				return candidate, nil
			}
		}
	}

	available, _ := d.ListSkillNames()
	if len(available) == 0 {
		return "", errors.Errorf("skill '%s' not found in %s", name, strings.Join(d.skillDirs, ", "))
	}
	return "", errors.Errorf("skill '%s' not found, available skills: %s", name, strings.Join(available, ", "))
}

// Resolve locates and parses the named skill
func (d *Discovery) Resolve(name string) (*Skill, error) {
	path, err := d.Locate(name)
	if err != nil {
		return nil, err
	}
	return LoadFile(path, name)
}

// LoadFile reads and parses a skill document. An empty id is derived from
// the file name.
func LoadFile(path, id string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}
	if id == "" {
		id = IDFromPath(path)
	}
	return Parse(id, content)
}

// IDFromPath derives a skill ID from its document path: the directory name
// for <name>/SKILL.md, the file name without extension otherwise
func IDFromPath(path string) string {
	base := filepath.Base(path)
	if base == skillFileName {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListSkillNames returns the sorted names of all available skills
func (d *Discovery) ListSkillNames() ([]string, error) {
	paths := d.discoverPaths()

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// LoadAll parses every available skill. Documents that fail to parse are
// reported together in the returned error while the rest are still returned.
func (d *Discovery) LoadAll() (map[string]*Skill, error) {
	paths := d.discoverPaths()

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	skills := make(map[string]*Skill, len(paths))
	var result *multierror.Error
	for _, name := range names {
		skill, err := LoadFile(paths[name], name)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "skill %s", name))
			continue
		}
		skills[name] = skill
	}

	return skills, result.ErrorOrNil()
}

// discoverPaths maps every skill name to the document that provides it
func (d *Discovery) discoverPaths() map[string]string {
	paths := map[string]string{}

	for _, dir := range d.skillDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())

			info, err := os.Stat(entryPath)
			if err != nil {
				continue
			}

			var name, path string
			switch {
			case info.IsDir():
				name = entry.Name()
				path = filepath.Join(entryPath, skillFileName)
				if !isRegularFile(path) {
					continue
				}
			case info.Mode().IsRegular() && filepath.Ext(entry.Name()) == skillFileExt:
				name = strings.TrimSuffix(entry.Name(), skillFileExt)
			default:
				continue
			}
			if path == "" {
				path = entryPath
			}

			if ValidateName(name) != nil {
				continue
			}
			if _, exists := paths[name]; !exists {
				paths[name] = path
			}
		}
	}

	return paths
}

func candidatePaths(dir, name string) []string {
	return []string{
		filepath.Join(dir, name, skillFileName),
		filepath.Join(dir, name+skillFileExt),
	}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
