package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/presenter"
	"github.com/chili-ocx/pepper/pkg/runner"
	"github.com/chili-ocx/pepper/pkg/skills"
)

// LintIssue is a problem found in a skill document
type LintIssue struct {
	Skill   string
	Step    string
	Message string
}

func (i LintIssue) String() string {
	if i.Step == "" {
		return fmt.Sprintf("%s: %s", i.Skill, i.Message)
	}
	return fmt.Sprintf("%s/%s: %s", i.Skill, i.Step, i.Message)
}

// LintConfig holds the flags of the lint command
type LintConfig struct {
	Watch        bool
	DebounceTime int
}

// NewLintConfig creates a LintConfig with default values
func NewLintConfig() *LintConfig {
	return &LintConfig{
		Watch:        false,
		DebounceTime: 300,
	}
}

// Validate validates the LintConfig
func (c *LintConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

var skillLintCmd = &cobra.Command{
	Use:   "lint [skill...]",
	Short: "Check skills for mistakes before running them",
	Long: `Check skills for problems the runner would only report mid-run: unknown
step types, missing required fields, invalid regular expressions and
references to steps that have not run yet.

With --watch the skill directories are watched and skills are linted again
whenever a document changes.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getLintConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		discovery := mustDiscovery()
		if !config.Watch {
			if lintAll(os.Stdout, discovery, args) > 0 {
				os.Exit(1)
			}
			return
		}

		if err := watchSkills(cmd.Context(), discovery, args, config); err != nil {
			presenter.Error(err, "Failed to watch skills")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewLintConfig()
	skillLintCmd.Flags().BoolP("watch", "w", defaults.Watch, "Lint again whenever a skill document changes")
	skillLintCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
}

func getLintConfigFromFlags(cmd *cobra.Command) *LintConfig {
	config := NewLintConfig()

	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}

	return config
}

// lintSkill reports problems in a parsed skill without running it
func lintSkill(skill *skills.Skill) []LintIssue {
	var issues []LintIssue
	add := func(step, format string, args ...any) {
		issues = append(issues, LintIssue{Skill: skill.ID, Step: step, Message: fmt.Sprintf(format, args...)})
	}

	if len(skill.Steps) == 0 {
		add("", "skill has no steps")
	}

	seen := map[string]bool{}
	for _, step := range skill.Steps {
		if !step.Known() {
			add(step.Name, "unknown step type %q will be skipped", step.Type)
		}
		cfg, err := step.Config()
		switch c := cfg.(type) {
		case skills.ShellConfig:
			if c.Command == "" {
				add(step.Name, "missing 'command' property")
			}
		case skills.RegexScanConfig:
			if c.File == "" {
				add(step.Name, "missing 'file' property")
			}
			if c.Pattern == "" {
				add(step.Name, "missing 'pattern' property")
			} else if len(skills.FindReferences(c.Pattern)) == 0 && len(skills.FindReferences(c.Flags)) == 0 {
				if _, err := runner.CompilePattern(c.Pattern, c.Flags); err != nil {
					add(step.Name, "%v", err)
				}
			}
		}
		if err != nil {
			add(step.Name, "%v", err)
		}

		for _, field := range sortedKeys(step.Fields) {
			value, ok := step.Fields[field].(string)
			if !ok {
				continue
			}
			for _, ref := range skills.FindReferences(value) {
				if ref.Root() != "steps" || len(ref.Path) < 2 {
					continue
				}
				if target := ref.Path[1]; !seen[target] {
					add(step.Name, "%s references step %q before it runs", field, target)
				}
			}
		}
		seen[step.Name] = true
	}

	return issues
}

// lintDocument checks the raw markdown of a skill. Frontmatter has to be
// valid YAML for other SKILL.md loaders, and every step marker has to be a
// real heading rather than a line inside a fenced block.
func lintDocument(skill *skills.Skill, content []byte) []LintIssue {
	var issues []LintIssue
	add := func(step, format string, args ...any) {
		issues = append(issues, LintIssue{Skill: skill.ID, Step: step, Message: fmt.Sprintf(format, args...)})
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	pctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(content), parser.WithContext(pctx))

	if _, err := meta.TryGet(pctx); err != nil {
		add("", "frontmatter is not valid YAML: %v", err)
	}

	headings := map[string]bool{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		heading, ok := n.(*ast.Heading)
		if !entering || !ok || heading.Level != 2 {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := heading.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			b.Write(segment.Value(content))
		}
		headings[strings.TrimSpace(b.String())] = true
		return ast.WalkSkipChildren, nil
	})

	for _, step := range skill.Steps {
		if !headings[step.Name] {
			add(step.Name, "step marker is not a markdown heading, is it inside a code block?")
		}
	}
	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// lintAll lints the named skills, or every skill when names is empty, and
// returns the number of problems found
func lintAll(w io.Writer, discovery *skills.Discovery, names []string) int {
	problems := 0
	var loaded []*skills.Skill

	if len(names) == 0 {
		all, err := discovery.LoadAll()
		if err != nil {
			fmt.Fprintln(w, err)
			problems++
		}
		for _, name := range sortedKeys(all) {
			loaded = append(loaded, all[name])
		}
	} else {
		for _, name := range names {
			skill, err := discovery.Resolve(name)
			if err != nil {
				fmt.Fprintf(w, "%s: %v\n", name, err)
				problems++
				continue
			}
			loaded = append(loaded, skill)
		}
	}

	for _, skill := range loaded {
		issues := lintSkill(skill)
		if path, err := discovery.Locate(skill.ID); err == nil {
			if content, err := os.ReadFile(path); err == nil {
				issues = append(issues, lintDocument(skill, content)...)
			}
		}
		for _, issue := range issues {
			fmt.Fprintln(w, issue.String())
			problems++
		}
	}

	if problems == 0 {
		fmt.Fprintf(w, "%d skill(s) OK\n", len(loaded))
	}
	return problems
}

// watchSkills lints once, then again after each debounced change to a
// skill document until ctx is done
func watchSkills(ctx context.Context, discovery *skills.Discovery, names []string, config *LintConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range discovery.Dirs() {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		watched++
	}
	if watched == 0 {
		return errors.Errorf("none of the skill directories exist: %s", strings.Join(discovery.Dirs(), ", "))
	}

	lintAll(os.Stdout, discovery, names)
	presenter.Info("Watching skills for changes... Press Ctrl+C to stop")

	changes := make(chan string)
	debounced := make(chan string, 1)
	go debounce(ctx, changes, debounced, time.Duration(config.DebounceTime)*time.Millisecond)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			select {
			case changes <- event.Name:
			case <-ctx.Done():
				return nil
			}
		case path := <-debounced:
			presenter.Separator()
			presenter.Info(fmt.Sprintf("Change detected: %s", path))
			lintAll(os.Stdout, discovery, names)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("error watching skills")
		case <-ctx.Done():
			return nil
		}
	}
}

// debounce forwards a value once no new value has arrived for delay,
// collapsing bursts of editor writes into one lint pass
func debounce(ctx context.Context, input <-chan string, output chan<- string, delay time.Duration) {
	timer := time.NewTimer(delay)
	timer.Stop()
	var last string

	for {
		select {
		case v := <-input:
			last = v
			timer.Reset(delay)
		case <-timer.C:
			// a pending pass already covers this change
			select {
			case output <- last:
			default:
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
