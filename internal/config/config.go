package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/cms/blog/application"
)

const (
	// MetadataFile holds the content root of an initialized project
	MetadataFile = ".cms"

	DefaultContentDir = "content"
	DefaultAddr       = "localhost:3000"
	DefaultRemoteDir  = "posts"

	srcDir      = "src"
	publishDir  = "publish"
	catalogFile = "catalog.db"
)

var (
	ErrNotInitialized     = errors.New("cms is not initialized, please call `cms init` to initialize cms in the repository")
	ErrAlreadyInitialized = errors.New("cms is already initialized")
)

// Config is the resolved configuration handed to the services
type Config struct {
	ContentDir      string
	OnDocumentError application.ErrorPolicy
	CatalogPath     string
	Addr            string
	WebhookSecret   string
	GitHub          GitHubConfig
}

type GitHubConfig struct {
	Owner     string
	Repo      string
	RemoteDir string
	Token     string
}

// Enabled reports whether a remote repository is configured
func (g GitHubConfig) Enabled() bool {
	return g.Owner != "" && g.Repo != ""
}

// SourceDir is where source documents live
func (c *Config) SourceDir() string {
	return filepath.Join(c.ContentDir, srcDir)
}

// PublishDir is rebuilt by every publish run
func (c *Config) PublishDir() string {
	return filepath.Join(c.ContentDir, publishDir)
}

// Init records contentDir in the metadata file at metaPath and creates the source directory
func Init(metaPath string, contentDir string) error {
	if _, err := os.Stat(metaPath); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", metaPath, err)
	}

	if strings.TrimSpace(contentDir) == "" {
		return fmt.Errorf("content directory cannot be empty")
	}

	if err := os.WriteFile(metaPath, []byte(contentDir), 0644); err != nil {
		return fmt.Errorf("failed writing %s: %w", metaPath, err)
	}

	if err := os.MkdirAll(filepath.Join(contentDir, srcDir), 0755); err != nil {
		return fmt.Errorf("failed creating content directory: %w", err)
	}

	return nil
}

// Load reads the content root from metaPath and applies environment overrides
func Load(metaPath string) (*Config, error) {
	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed reading %s: %w", metaPath, err)
	}

	contentDir := strings.TrimSpace(string(raw))
	if contentDir == "" {
		return nil, fmt.Errorf("%s does not name a content directory", metaPath)
	}

	return FromEnv(contentDir, os.Getenv)
}

// FromEnv builds a Config for contentDir, reading overrides through getenv
func FromEnv(contentDir string, getenv func(string) string) (*Config, error) {
	policy, err := application.ParseErrorPolicy(getenv("CMS_ON_DOCUMENT_ERROR"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ContentDir:      contentDir,
		OnDocumentError: policy,
		CatalogPath:     getenv("CMS_CATALOG_PATH"),
		Addr:            getenv("CMS_ADDR"),
		WebhookSecret:   getenv("CMS_WEBHOOK_SECRET"),
		GitHub: GitHubConfig{
			RemoteDir: getenv("CMS_GITHUB_DIR"),
			Token:     getenv("GITHUB_TOKEN"),
		},
	}

	if cfg.CatalogPath == "" {
		cfg.CatalogPath = filepath.Join(contentDir, catalogFile)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.GitHub.RemoteDir == "" {
		cfg.GitHub.RemoteDir = DefaultRemoteDir
	}

	if repo := getenv("CMS_GITHUB_REPO"); repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("CMS_GITHUB_REPO must look like owner/name, got %q", repo)
		}
		cfg.GitHub.Owner = owner
		cfg.GitHub.Repo = name
	}

	return cfg, nil
}
