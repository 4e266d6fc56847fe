// internal/config/config.go
//
// This package handles configuration and the .onboardia directory structure.
// Every project that uses Onboardia gets a .onboardia/ folder created in its
// root, holding the run state, logs, drafts, and the project config file.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// OnboardiaDir is the name of the directory we create in each project
	OnboardiaDir = ".onboardia"

	defaultWorkflowID = "new-joiner-onboarding"

	defaultLLMProvider = "gemini"
	defaultGeminiModel = "gemini-2.0-flash"
	defaultClaudeModel = "claude-sonnet-4-20250514"

	defaultTimezone = "Asia/Kolkata"

	defaultJoinerRole   = "Data Engineer"
	defaultJoinerLevel  = "junior"
	defaultJoinerWindow = 14

	defaultMentorCapacity = 3
	defaultOnboardWorkers = 1
)

// Environment variable names read at startup. Validation reports every
// missing one at once rather than failing on the first.
const (
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvAnthropicAPIKey   = "ANTHROPIC_API_KEY"
	EnvAsanaPAT          = "ASANA_PAT"
	EnvAsanaWorkspaceGID = "ASANA_WORKSPACE_GID"
	EnvAsanaProjectGID   = "ASANA_PROJECT_GID"
)

const defaultProjectConfigYAML = `# onboardia project configuration
version: 1

llm:
  # provider: gemini or anthropic. The matching API key env var must be set
  # (GEMINI_API_KEY or ANTHROPIC_API_KEY).
  provider: gemini
  # model: ""            # leave empty for the provider default

database:
  # Path to the employee SQLite database, relative to the project root.
  path: .onboardia/employees.db

google:
  # OAuth client credentials and cached token, relative to the project root.
  credentials_path: credentials.json
  token_path: .onboardia/token.json
  timezone: Asia/Kolkata

onboarding:
  role: Data Engineer
  level: junior
  window_days: 14
  mentor_capacity: 3

workflows:
  default: new-joiner-onboarding
`

// LLMConfig selects the language model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model,omitempty"`
}

// DatabaseConfig locates the employee database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GoogleConfig holds the OAuth file locations and scheduling timezone.
type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
	Timezone        string `yaml:"timezone"`
}

// OnboardingConfig controls which hires are picked up, mentor limits, and
// how many hires the sweep onboards at once.
type OnboardingConfig struct {
	Role           string `yaml:"role"`
	Level          string `yaml:"level"`
	WindowDays     int    `yaml:"window_days"`
	MentorCapacity int    `yaml:"mentor_capacity"`
	MaxParallel    int    `yaml:"max_parallel,omitempty"`
}

// WorkflowConfig captures workflow preferences.
type WorkflowConfig struct {
	Default   string   `yaml:"default"`
	Available []string `yaml:"available,omitempty"`
}

// WebhookConfig controls the optional Asana webhook receiver.
type WebhookConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// ProjectConfig models .onboardia/config.yaml.
type ProjectConfig struct {
	Version    int              `yaml:"version"`
	LLM        LLMConfig        `yaml:"llm"`
	Database   DatabaseConfig   `yaml:"database"`
	Google     GoogleConfig     `yaml:"google"`
	Onboarding OnboardingConfig `yaml:"onboarding"`
	Workflows  WorkflowConfig   `yaml:"workflows"`
	Webhooks   WebhookConfig    `yaml:"webhooks,omitempty"`
}

// Secrets holds values read from the environment, never from config.yaml.
type Secrets struct {
	GeminiAPIKey      string
	AnthropicAPIKey   string
	AsanaPAT          string
	AsanaWorkspaceGID string
	AsanaProjectGID   string
}

// Config holds the runtime configuration for Onboardia.
type Config struct {
	// ProjectDir is the directory where the user ran `onboardia` from
	ProjectDir string

	// OnboardiaProjectDir is ProjectDir/.onboardia
	OnboardiaProjectDir string

	Project ProjectConfig
	Secrets Secrets
}

// InitOnboardiaDir creates the .onboardia directory structure in the given
// project directory. This is called when the TUI starts up.
//
// Structure created:
// .onboardia/
// ├── logs/       <- Run logbook files
// ├── state/      <- Persisted run state between launches
// ├── runs/       <- Per-run records (summaries, claims)
// ├── drafts/     <- Generated welcome email drafts
// └── plugins/    <- Drop-in custom onboarding steps
func InitOnboardiaDir(projectDir string) error {
	onboardiaDir := filepath.Join(projectDir, OnboardiaDir)

	dirs := []string{
		filepath.Join(onboardiaDir, "logs"),
		filepath.Join(onboardiaDir, "state"),
		filepath.Join(onboardiaDir, "runs"),
		filepath.Join(onboardiaDir, "drafts"),
		filepath.Join(onboardiaDir, "plugins"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if err := ensureProjectConfig(filepath.Join(onboardiaDir, "config.yaml")); err != nil {
		return err
	}

	return nil
}

// NewConfig creates a new Config instance populated with project settings
// and environment secrets. A .env file in the project directory is loaded
// first when present; real environment variables win over its contents.
func NewConfig(projectDir string) (*Config, error) {
	// Missing .env is fine, the variables may already be exported.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir:          projectDir,
		OnboardiaProjectDir: filepath.Join(projectDir, OnboardiaDir),
		Project:             defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}

	cfg.Secrets = Secrets{
		GeminiAPIKey:      strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)),
		AnthropicAPIKey:   strings.TrimSpace(os.Getenv(EnvAnthropicAPIKey)),
		AsanaPAT:          strings.TrimSpace(os.Getenv(EnvAsanaPAT)),
		AsanaWorkspaceGID: strings.TrimSpace(os.Getenv(EnvAsanaWorkspaceGID)),
		AsanaProjectGID:   strings.TrimSpace(os.Getenv(EnvAsanaProjectGID)),
	}

	return cfg, nil
}

// ValidateSecrets checks that every environment variable the configured
// providers need is present. All missing names are reported in one error so
// the user can fix them in a single pass.
func (c *Config) ValidateSecrets() error {
	var missing []string

	switch c.Project.LLM.Provider {
	case "anthropic":
		if c.Secrets.AnthropicAPIKey == "" {
			missing = append(missing, EnvAnthropicAPIKey)
		}
	default:
		if c.Secrets.GeminiAPIKey == "" {
			missing = append(missing, EnvGeminiAPIKey)
		}
	}
	if c.Secrets.AsanaPAT == "" {
		missing = append(missing, EnvAsanaPAT)
	}
	if c.Secrets.AsanaWorkspaceGID == "" {
		missing = append(missing, EnvAsanaWorkspaceGID)
	}
	if c.Secrets.AsanaProjectGID == "" {
		missing = append(missing, EnvAsanaProjectGID)
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.OnboardiaProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.OnboardiaProjectDir, "state")
}

// RunsDir returns the path holding per-run records
func (c *Config) RunsDir() string {
	return filepath.Join(c.OnboardiaProjectDir, "runs")
}

// DraftsDir returns the directory that holds generated email drafts
func (c *Config) DraftsDir() string {
	return filepath.Join(c.OnboardiaProjectDir, "drafts")
}

// PluginsDir returns the directory scanned for drop-in step plugins
func (c *Config) PluginsDir() string {
	return filepath.Join(c.OnboardiaProjectDir, "plugins")
}

// DatabasePath returns the resolved employee database location.
func (c *Config) DatabasePath() string {
	return resolvePath(c.ProjectDir, c.Project.Database.Path)
}

// GoogleCredentialsPath returns the resolved OAuth client secrets location.
func (c *Config) GoogleCredentialsPath() string {
	return resolvePath(c.ProjectDir, c.Project.Google.CredentialsPath)
}

// GoogleTokenPath returns the resolved cached OAuth token location.
func (c *Config) GoogleTokenPath() string {
	return resolvePath(c.ProjectDir, c.Project.Google.TokenPath)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.OnboardiaProjectDir, "config.yaml")
}

// DefaultWorkflow returns the configured default workflow identifier.
func (c *Config) DefaultWorkflow() string {
	return c.Project.Workflows.Default
}

// SetDefaultWorkflow updates the default workflow identifier and persists the
// value back to .onboardia/config.yaml. The workflow ID is also appended to
// the available list so the selector can display it on future launches.
func (c *Config) SetDefaultWorkflow(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: workflow id is required")
	}
	c.Project.Workflows.Default = id
	if !contains(c.Project.Workflows.Available, id) {
		c.Project.Workflows.Available = append(c.Project.Workflows.Available, id)
	}
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(OnboardiaDir, "employees.db"),
		},
		Google: GoogleConfig{
			CredentialsPath: "credentials.json",
			TokenPath:       filepath.Join(OnboardiaDir, "token.json"),
			Timezone:        defaultTimezone,
		},
		Onboarding: OnboardingConfig{
			Role:           defaultJoinerRole,
			Level:          defaultJoinerLevel,
			WindowDays:     defaultJoinerWindow,
			MentorCapacity: defaultMentorCapacity,
			MaxParallel:    defaultOnboardWorkers,
		},
		Workflows: WorkflowConfig{
			Default: defaultWorkflowID,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.LLM.Provider == "" {
		pc.LLM.Provider = defaultLLMProvider
	}
	if pc.Database.Path == "" {
		pc.Database.Path = filepath.Join(OnboardiaDir, "employees.db")
	}
	if pc.Google.CredentialsPath == "" {
		pc.Google.CredentialsPath = "credentials.json"
	}
	if pc.Google.TokenPath == "" {
		pc.Google.TokenPath = filepath.Join(OnboardiaDir, "token.json")
	}
	if pc.Google.Timezone == "" {
		pc.Google.Timezone = defaultTimezone
	}
	if pc.Onboarding.Role == "" {
		pc.Onboarding.Role = defaultJoinerRole
	}
	if pc.Onboarding.Level == "" {
		pc.Onboarding.Level = defaultJoinerLevel
	}
	if pc.Onboarding.WindowDays == 0 {
		pc.Onboarding.WindowDays = defaultJoinerWindow
	}
	if pc.Onboarding.MentorCapacity == 0 {
		pc.Onboarding.MentorCapacity = defaultMentorCapacity
	}
	if pc.Onboarding.MaxParallel < 1 {
		pc.Onboarding.MaxParallel = defaultOnboardWorkers
	}
}

func (pc *ProjectConfig) normalize() {
	pc.LLM.Provider = strings.ToLower(strings.TrimSpace(pc.LLM.Provider))
	pc.LLM.Model = strings.TrimSpace(pc.LLM.Model)
	pc.Database.Path = strings.TrimSpace(pc.Database.Path)
	pc.Google.CredentialsPath = strings.TrimSpace(pc.Google.CredentialsPath)
	pc.Google.TokenPath = strings.TrimSpace(pc.Google.TokenPath)
	pc.Google.Timezone = strings.TrimSpace(pc.Google.Timezone)
	pc.Onboarding.Role = strings.TrimSpace(pc.Onboarding.Role)
	pc.Onboarding.Level = strings.ToLower(strings.TrimSpace(pc.Onboarding.Level))
	pc.Workflows.Default = strings.TrimSpace(pc.Workflows.Default)
	if pc.Workflows.Default == "" {
		pc.Workflows.Default = defaultWorkflowID
	}
	if len(pc.Workflows.Available) > 0 && !contains(pc.Workflows.Available, pc.Workflows.Default) {
		pc.Workflows.Available = append(pc.Workflows.Available, pc.Workflows.Default)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.LLM.Provider {
	case "gemini", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be 'gemini' or 'anthropic'")
	}
	if pc.Onboarding.WindowDays < 1 {
		return fmt.Errorf("onboarding.window_days must be >= 1")
	}
	if pc.Onboarding.MentorCapacity < 1 {
		return fmt.Errorf("onboarding.mentor_capacity must be >= 1")
	}
	if strings.TrimSpace(pc.Workflows.Default) == "" {
		return fmt.Errorf("workflows.default is required")
	}
	return nil
}

// Model returns the configured model name, falling back to the provider
// default.
func (pc ProjectConfig) Model() string {
	if pc.LLM.Model != "" {
		return pc.LLM.Model
	}
	if pc.LLM.Provider == "anthropic" {
		return defaultClaudeModel
	}
	return defaultGeminiModel
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.OnboardiaProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure onboardia dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
