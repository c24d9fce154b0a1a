// Package config reads the letterpress.config file found at the root of a
// published directory.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jlrickert/letterpress/pkg/internal"
	"github.com/jlrickert/letterpress/pkg/post"
)

// FileName is the config file name inside the published directory.
const FileName = "letterpress.config"

const (
	// LogFileName is the log file written inside the published directory.
	LogFileName = "letterpress.log"
	// TemplatesDir holds the page templates inside the published directory.
	TemplatesDir = "templates"
	// LockFileName guards a site directory against concurrent publishers.
	LockFileName = ".letterpress.lock"
)

const (
	DefaultPostsPerPage = 10
	DefaultMarkdownExt  = ".md"
)

// TagIdentity selects how tag names are compared.
type TagIdentity string

const (
	// TagExact keys tags by their exact, case preserving name.
	TagExact TagIdentity = "exact"
	// TagFold keys tags by their Unicode case folded name.
	TagFold TagIdentity = "fold"
)

// TimelinePolicy selects how the timeline reacts to a single post change.
type TimelinePolicy string

const (
	TimelineIncremental TimelinePolicy = "incremental"
	TimelineRebuild     TimelinePolicy = "rebuild"
)

var requiredKeys = []string{"base_url", "date_format", "site_dir"}

// Config is the parsed letterpress.config.
type Config struct {
	BaseURL      string
	DateFormat   string
	SiteDir      string
	PostsPerPage int
	MarkdownExt  string

	Title       string
	Description string

	TagIdentity    TagIdentity
	TimelinePolicy TimelinePolicy

	// Values holds every key found in the file, including unknown keys.
	// Templates can reference them by name.
	Values map[string]string
}

// Parse parses config file contents. Blank lines and lines starting with '#'
// are ignored. Every other line must be a "key: value" pair.
func Parse(data []byte) (*Config, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, &InvalidConfigError{Line: lineNo, Msg: fmt.Sprintf("expected key: value, got %q", line)}
		}
		values[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, k := range requiredKeys {
		if values[k] == "" {
			return nil, &InvalidConfigError{Msg: fmt.Sprintf("missing required key %q", k)}
		}
	}

	cfg := &Config{
		BaseURL:        strings.TrimRight(values["base_url"], "/"),
		DateFormat:     values["date_format"],
		SiteDir:        values["site_dir"],
		PostsPerPage:   DefaultPostsPerPage,
		MarkdownExt:    DefaultMarkdownExt,
		Title:          values["title"],
		Description:    values["description"],
		TagIdentity:    TagExact,
		TimelinePolicy: TimelineIncremental,
		Values:         values,
	}

	if raw := values["posts_per_page"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, &InvalidConfigError{Msg: fmt.Sprintf("posts_per_page must be a positive integer, got %q", raw)}
		}
		cfg.PostsPerPage = n
	}
	if ext := values["markdown_ext"]; ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.MarkdownExt = ext
	}
	if raw := values["tag_identity"]; raw != "" {
		switch TagIdentity(strings.ToLower(raw)) {
		case TagExact:
		case TagFold:
			cfg.TagIdentity = TagFold
		default:
			return nil, &InvalidConfigError{Msg: fmt.Sprintf("tag_identity must be exact or fold, got %q", raw)}
		}
	}
	if raw := values["timeline_policy"]; raw != "" {
		switch TimelinePolicy(strings.ToLower(raw)) {
		case TimelineIncremental:
		case TimelineRebuild:
			cfg.TimelinePolicy = TimelineRebuild
		default:
			return nil, &InvalidConfigError{Msg: fmt.Sprintf("timeline_policy must be incremental or rebuild, got %q", raw)}
		}
	}
	return cfg, nil
}

// Load reads FileName from publishedDir and resolves site_dir to an
// absolute path. A relative site_dir is taken relative to publishedDir.
func Load(publishedDir string) (*Config, error) {
	path := filepath.Join(publishedDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s: %w", path, ErrNotExist)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		if ice, ok := err.(*InvalidConfigError); ok {
			ice.Path = path
		}
		return nil, err
	}
	siteDir, err := internal.ExpandPath(publishedDir, cfg.SiteDir)
	if err != nil {
		return nil, &InvalidConfigError{Path: path, Msg: err.Error()}
	}
	cfg.SiteDir = siteDir
	return cfg, nil
}

// PostOptions returns the options used to parse post documents.
func (c *Config) PostOptions() post.Options {
	return post.Options{BaseURL: c.BaseURL, DateFormat: c.DateFormat}
}

// Get returns the raw value for key.
func (c *Config) Get(key string) string {
	if c == nil {
		return ""
	}
	return c.Values[strings.ToLower(key)]
}

// Keys returns every key present in the file, sorted.
func (c *Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.Values))
}

// URL joins a site relative path onto the base URL.
func (c *Config) URL(rel string) string {
	return post.JoinURL(c.BaseURL, rel)
}

// Equal reports whether two configs would produce the same site.
func (c *Config) Equal(o *Config) bool {
	if c == nil || o == nil {
		return c == o
	}
	return maps.Equal(c.Values, o.Values) && c.SiteDir == o.SiteDir
}
