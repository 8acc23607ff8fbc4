package runner

import (
	"context"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/chili-ocx/pepper/pkg/skills"
)

// DefaultScanFlags apply when a regex_scan step sets no flags
const DefaultScanFlags = "g"

func (r *Runner) runRegexScan(ctx context.Context, ec *ExecutionContext, step skills.Step, cfg skills.RegexScanConfig) (Outcome, error) {
	if cfg.File == "" {
		return nil, &MissingFieldError{Step: step.Name, Type: step.Type, Field: "file"}
	}
	if cfg.Pattern == "" {
		return nil, &MissingFieldError{Step: step.Name, Type: step.Type, Field: "pattern"}
	}

	root := ec.Resolve(cfg.File)
	if root == "" {
		root = "."
	}
	pattern := ec.Resolve(cfg.Pattern)
	re, err := CompilePattern(pattern, ec.Resolve(cfg.Flags))
	if err != nil {
		return nil, &FieldError{Step: step.Name, Field: "pattern", Err: err}
	}

	files, err := r.discoverFiles(ctx, ec, step, root)
	if err != nil {
		return nil, err
	}

	matched := []string{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "scan cancelled")
		}

		path := r.resolvePath(file)
		info, err := r.fs.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.warn(ctx, ec, step, "file disappeared before scanning: %s", file)
				continue
			}
			return nil, errors.Wrapf(err, "failed to stat %s", file)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		content, err := r.fs.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.warn(ctx, ec, step, "file disappeared before scanning: %s", file)
				continue
			}
			return nil, errors.Wrapf(err, "failed to read %s", file)
		}
		if !re.Match(content) {
			continue
		}

		matched = append(matched, file)
		if cfg.FailIfMatch {
			return nil, &SecurityViolation{File: file, Pattern: pattern}
		}
	}

	if cfg.FailIfNoMatch && len(matched) == 0 {
		return nil, &ValidationViolation{Path: root, Pattern: pattern}
	}

	return Completed{Value: ScanResult{Scanned: files, Matched: matched, Status: ScanStatusClean}}, nil
}

// CompilePattern builds a regular expression from a pattern and JS-style
// flags. A leading (?i) is folded into the flags. Flags i, m and s map to
// the Go inline flags of the same name; g, u, y and d have no effect.
func CompilePattern(pattern, flags string) (*regexp.Regexp, error) {
	if flags == "" {
		flags = DefaultScanFlags
	}
	if rest, ok := strings.CutPrefix(pattern, "(?i)"); ok {
		pattern = rest
		if !strings.Contains(flags, "i") {
			flags += "i"
		}
	}

	var inline strings.Builder
	for _, f := range "ims" {
		if strings.ContainsRune(flags, f) {
			inline.WriteRune(f)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "invalid pattern")
	}
	return re, nil
}

// discoverFiles lists the files under root, preferring version control so
// ignored files are left out, and walking the file system otherwise
func (r *Runner) discoverFiles(ctx context.Context, ec *ExecutionContext, step skills.Step, root string) ([]string, error) {
	if r.vcs.IsRepository(ctx, r.workDir) {
		files, err := r.vcs.ListFiles(ctx, r.workDir, root)
		if err != nil {
			r.warn(ctx, ec, step, "version control listing failed, walking %s instead: %v", root, err)
		} else if len(files) > 0 {
			return files, nil
		}
	}

	if hasGlobMeta(root) {
		return r.globFiles(root)
	}
	return r.walkFiles(root)
}

func (r *Runner) globFiles(root string) ([]string, error) {
	matches, err := r.fs.Glob(r.resolvePath(root))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid glob %s", root)
	}

	files := []string{}
	for _, match := range matches {
		rel, err := filepath.Rel(r.workDir, match)
		if err != nil {
			rel = match
		}
		if r.inSkippedDir(rel) {
			continue
		}
		if filepath.IsAbs(root) {
			files = append(files, match)
		} else {
			files = append(files, rel)
		}
	}
	return files, nil
}

func (r *Runner) walkFiles(root string) ([]string, error) {
	start := r.resolvePath(root)
	// WalkDir does not follow a symlinked root
	if resolved, err := filepath.EvalSymlinks(start); err == nil {
		start = resolved
	}
	files := []string{}

	err := r.fs.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are left out, as is a missing root
			if d != nil && d.IsDir() && path != start {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != start && r.skipped(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(start, path)
		if err != nil {
			return err
		}
		if rel == "." {
			files = append(files, root)
		} else {
			files = append(files, filepath.Join(root, rel))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", root)
	}
	return files, nil
}

func (r *Runner) skipped(name string) bool {
	for _, skip := range r.skipDirs {
		if name == skip {
			return true
		}
	}
	return false
}

func (r *Runner) inSkippedDir(path string) bool {
	dir := filepath.Dir(path)
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if r.skipped(part) {
			return true
		}
	}
	return false
}

func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}
