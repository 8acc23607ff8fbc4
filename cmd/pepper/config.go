package main

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/runner"
	"github.com/chili-ocx/pepper/pkg/skills"
	"github.com/chili-ocx/pepper/pkg/telemetry"
)

// AppConfig is the merged view of config.yaml, PEPPER_* environment
// variables and persistent flags
type AppConfig struct {
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`
	Skills      SkillsConfig      `mapstructure:"skills"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Generate    GenerateConfig    `mapstructure:"generate"`
	Scan        ScanConfig        `mapstructure:"scan"`
	Tracing     telemetry.Config  `mapstructure:"tracing"`
}

// SkillsConfig lists the directories searched for skills, in precedence order
type SkillsConfig struct {
	Dirs []string `mapstructure:"dirs"`
}

// PermissionsConfig holds extra glob patterns for the command gate
type PermissionsConfig struct {
	Allow []string `mapstructure:"allow"`
	Deny  []string `mapstructure:"deny"`
}

// GenerateConfig tunes llm_generate steps
type GenerateConfig struct {
	LargePromptThreshold int `mapstructure:"large_prompt_threshold"`
}

// ScanConfig tunes regex_scan steps
type ScanConfig struct {
	SkipDirs []string `mapstructure:"skip_dirs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", logger.FormatText)
	v.SetDefault("skills.dirs", skills.DefaultSkillDirs)
	v.SetDefault("permissions.allow", []string{})
	v.SetDefault("permissions.deny", []string{})
	v.SetDefault("generate.large_prompt_threshold", runner.DefaultLargePromptThreshold)
	v.SetDefault("scan.skip_dirs", runner.DefaultSkipDirs)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", telemetry.SamplerRatio)
	v.SetDefault("tracing.ratio", 1.0)
	v.SetDefault("tracing.service_name", telemetry.DefaultTracerName)
}

func loadConfig(v *viper.Viper) (*AppConfig, error) {
	setDefaults(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if cfg.Generate.LargePromptThreshold <= 0 {
		return nil, errors.Errorf("generate.large_prompt_threshold must be positive, got %d", cfg.Generate.LargePromptThreshold)
	}
	return &cfg, nil
}

// newDiscovery resolves relative skill directories against workDir
func newDiscovery(cfg *AppConfig, workDir string) (*skills.Discovery, error) {
	dirs := make([]string, len(cfg.Skills.Dirs))
	for i, dir := range cfg.Skills.Dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(workDir, dir)
		}
		dirs[i] = dir
	}
	return skills.NewDiscovery(skills.WithSkillDirs(dirs...))
}

func newRunner(cfg *AppConfig, workDir string, sink runner.EventSink) (*runner.Runner, error) {
	gate, err := runner.NewGate(
		runner.WithAllowPatterns(cfg.Permissions.Allow...),
		runner.WithDenyPatterns(cfg.Permissions.Deny...),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid permissions configuration")
	}

	return runner.New(
		runner.WithWorkDir(workDir),
		runner.WithGate(gate),
		runner.WithEventSink(sink),
		runner.WithSkipDirs(cfg.Scan.SkipDirs...),
		runner.WithLargePromptThreshold(cfg.Generate.LargePromptThreshold),
	)
}
