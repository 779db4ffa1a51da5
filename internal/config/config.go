package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Execution methods for a TaskSpec. An empty method is resolved from the
// file suffix: ".sh" runs under the shell, everything else under the interpreter.
const (
	MethodInterpreter = "interpreter"
	MethodShell       = "shell"
	MethodExec        = "exec"
	MethodContainer   = "container"
)

const (
	DefaultTaskTimeout  = 30 * time.Second
	DefaultProbeTimeout = 2 * time.Second
	DefaultCycles       = 10
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	TasksDir      string        `yaml:"tasks_dir"`
	Interpreter   string        `yaml:"interpreter"`
	Shell         string        `yaml:"shell"`
	TaskTimeout   time.Duration `yaml:"task_timeout"`
	StrictStderr  *bool         `yaml:"strict_stderr"`
	EnvFile       string        `yaml:"env_file"`
	Tasks         []TaskSpec    `yaml:"tasks"`
	Observability Observability `yaml:"observability"`
	Report        Report        `yaml:"report"`
	SelfTune      SelfTune      `yaml:"selftune"`
	Metrics       Metrics       `yaml:"metrics"`
}

// TaskSpec identifies one external demo task. It is immutable once loaded.
type TaskSpec struct {
	Name        string        `yaml:"name"`
	Path        string        `yaml:"path"`
	Method      string        `yaml:"method"`
	Interpreter string        `yaml:"interpreter"`
	Image       string        `yaml:"image"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Observability struct {
	BaseURL   string        `yaml:"base_url"`
	Endpoints []string      `yaml:"endpoints"`
	Timeout   time.Duration `yaml:"timeout"`
	Service   Service       `yaml:"service"`
}

// Service is an optional observability process the harness launches before
// probing and stops afterwards.
type Service struct {
	Command     []string      `yaml:"command"`
	EnvFile     string        `yaml:"env_file"`
	LogFile     string        `yaml:"log_file"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

type Report struct {
	Path string `yaml:"path"`
}

type SelfTune struct {
	StatePath string `yaml:"state_path"`
	Cycles    int    `yaml:"cycles"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Strict reports whether stderr content participates in task classification.
func (c *Config) Strict() bool {
	return c.StrictStderr == nil || *c.StrictStderr
}

// TaskPath returns the absolute-or-tasks-dir-relative path of a task.
func (c *Config) TaskPath(t *TaskSpec) string {
	p := t.Path
	if p == "" {
		p = t.Name
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.TasksDir, p)
}

// ResolveMethod returns the execution method, inferring it from the suffix
// when the task leaves it empty.
func (t *TaskSpec) ResolveMethod() string {
	if t.Method != "" {
		return t.Method
	}
	p := t.Path
	if p == "" {
		p = t.Name
	}
	if strings.HasSuffix(p, ".sh") {
		return MethodShell
	}
	return MethodInterpreter
}

// Load reads and validates the YAML config at path. Relative paths inside
// the file resolve against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration mirroring the stock demo suite.
func Default() *Config {
	cfg, err := parse(defaultsYAML, ".")
	if err != nil {
		panic(fmt.Sprintf("embedded defaults: %v", err))
	}
	return cfg
}

func parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if err := validate(&cfg, baseDir); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config, baseDir string) error {
	if cfg.TasksDir == "" {
		cfg.TasksDir = "."
	}
	cfg.TasksDir = resolvePath(baseDir, cfg.TasksDir)
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	if cfg.Shell == "" {
		cfg.Shell = "bash"
	}
	if cfg.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout must not be negative")
	}
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.EnvFile != "" {
		cfg.EnvFile = resolvePath(baseDir, cfg.EnvFile)
	}

	if len(cfg.Tasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}
	seen := make(map[string]bool, len(cfg.Tasks))
	for i := range cfg.Tasks {
		t := &cfg.Tasks[i]
		if t.Name == "" {
			return fmt.Errorf("task %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("task %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		if t.Timeout < 0 {
			return fmt.Errorf("task %q: timeout must not be negative", t.Name)
		}
		if t.Timeout == 0 {
			t.Timeout = cfg.TaskTimeout
		}
		switch t.Method {
		case "", MethodInterpreter, MethodShell, MethodExec:
		case MethodContainer:
			if t.Image == "" {
				return fmt.Errorf("task %q: image is required for container tasks", t.Name)
			}
		default:
			return fmt.Errorf("task %q: unknown method %q", t.Name, t.Method)
		}
	}

	obs := &cfg.Observability
	obs.BaseURL = strings.TrimRight(obs.BaseURL, "/")
	if len(obs.Endpoints) > 0 && obs.BaseURL == "" {
		return fmt.Errorf("observability.base_url is required when endpoints are set")
	}
	for i, e := range obs.Endpoints {
		obs.Endpoints[i] = strings.TrimLeft(e, "/")
		if obs.Endpoints[i] == "" {
			return fmt.Errorf("observability endpoint %d: empty name", i)
		}
	}
	if obs.Timeout <= 0 {
		obs.Timeout = DefaultProbeTimeout
	}
	if obs.Service.WaitTimeout <= 0 {
		obs.Service.WaitTimeout = 10 * time.Second
	}
	if obs.Service.EnvFile != "" {
		obs.Service.EnvFile = resolvePath(baseDir, obs.Service.EnvFile)
	}
	if obs.Service.LogFile != "" {
		obs.Service.LogFile = resolvePath(baseDir, obs.Service.LogFile)
	}

	if cfg.Report.Path == "" {
		cfg.Report.Path = "${TMPDIR}/paxect_demo_09_all_in_one.json"
	}
	cfg.Report.Path = resolvePath(baseDir, cfg.Report.Path)
	if cfg.SelfTune.StatePath == "" {
		cfg.SelfTune.StatePath = "${TMPDIR}/paxect_demo_07_selftune_state.json"
	}
	cfg.SelfTune.StatePath = resolvePath(baseDir, cfg.SelfTune.StatePath)
	if cfg.SelfTune.Cycles < 0 {
		return fmt.Errorf("selftune.cycles must not be negative")
	}
	if cfg.SelfTune.Cycles == 0 {
		cfg.SelfTune.Cycles = DefaultCycles
	}
	if cfg.Metrics.Textfile != "" {
		cfg.Metrics.Textfile = resolvePath(baseDir, cfg.Metrics.Textfile)
	}
	return nil
}

// resolvePath expands ${VAR} references (TMPDIR falls back to os.TempDir)
// and anchors relative results at baseDir.
func resolvePath(baseDir, p string) string {
	p = os.Expand(p, func(key string) string {
		if key == "TMPDIR" {
			return os.TempDir()
		}
		return os.Getenv(key)
	})
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
