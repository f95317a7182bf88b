package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Majr25/SpriteEdit/internal/app"
)

// Config captures runtime configuration for the application.
type Config struct {
	App     app.Config
	Logging Logging
	File    string
	Flags   map[string]string
	Args    []string
}

type Logging struct {
	FilePath string
	Trace    bool
}

// fileConfig is the optional YAML file. Its values sit below environment
// variables and flags.
type fileConfig struct {
	API           string `yaml:"api"`
	Page          string `yaml:"page"`
	PageID        int    `yaml:"page_id"`
	SheetFile     string `yaml:"sheet_file"`
	SheetURL      string `yaml:"sheet_url"`
	ImageWidth    int    `yaml:"image_width"`
	ImageHeight   int    `yaml:"image_height"`
	Spacing       int    `yaml:"spacing"`
	Tag           string `yaml:"tag"`
	User          string `yaml:"user"`
	StateFile     string `yaml:"state_file"`
	DropDir       string `yaml:"drop_dir"`
	WatchInterval string `yaml:"watch_interval"`
	Footer        bool   `yaml:"footer"`
	LogFile       string `yaml:"log_file"`
	Trace         bool   `yaml:"trace"`
}

const (
	envConfig        = "SPRITEEDIT_CONFIG"
	envAPI           = "SPRITEEDIT_API"
	envPage          = "SPRITEEDIT_PAGE"
	envPageID        = "SPRITEEDIT_PAGE_ID"
	envSheetFile     = "SPRITEEDIT_SHEET_FILE"
	envSheetURL      = "SPRITEEDIT_SHEET_URL"
	envImageWidth    = "SPRITEEDIT_IMAGE_WIDTH"
	envImageHeight   = "SPRITEEDIT_IMAGE_HEIGHT"
	envSpacing       = "SPRITEEDIT_SPACING"
	envTag           = "SPRITEEDIT_TAG"
	envUser          = "SPRITEEDIT_USER"
	envPassword      = "SPRITEEDIT_PASSWORD"
	envStateFile     = "SPRITEEDIT_STATE_FILE"
	envDropDir       = "SPRITEEDIT_DROP_DIR"
	envWatchInterval = "SPRITEEDIT_WATCH_INTERVAL"
	envFooter        = "SPRITEEDIT_FOOTER"
	envTrace         = "SPRITEEDIT_TRACE"
	envLogFile       = "SPRITEEDIT_LOG_FILE"
)

// Load parses configuration from CLI arguments and environment variables.
func Load() (Config, error) {
	return LoadArgs(os.Args[1:], os.Environ())
}

// LoadArgs allows tests to supply specific args/environment.
func LoadArgs(args []string, environ []string) (Config, error) {
	env := parseEnv(environ)

	path := configArg(args)
	if path == "" {
		path = env[envConfig]
	}
	file, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	if file.ImageWidth == 0 {
		file.ImageWidth = 32
	}
	if file.ImageHeight == 0 {
		file.ImageHeight = 32
	}
	if file.WatchInterval == "" {
		file.WatchInterval = "1m"
	}
	if file.Tag == "" {
		file.Tag = "sprite-editor"
	}

	fs := flag.NewFlagSet("spriteedit", flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))

	_ = fs.String("config", path, "path to a YAML config file")
	api := fs.String("api", envOrDefault(env, envAPI, file.API), "URL of the wiki's api.php")
	page := fs.String("page", envOrDefault(env, envPage, file.Page), "documentation page purged after saving")
	pageID := fs.Int("page-id", envOrInt(env, envPageID, file.PageID), "page ID of the IDs data page")
	sheetFile := fs.String("sheet-file", envOrDefault(env, envSheetFile, file.SheetFile), "spritesheet file name on the wiki")
	sheetURL := fs.String("sheet-url", envOrDefault(env, envSheetURL, file.SheetURL), "direct spritesheet URL (skips the file lookup)")
	width := fs.Int("image-width", envOrInt(env, envImageWidth, file.ImageWidth), "sprite width in pixels")
	height := fs.Int("image-height", envOrInt(env, envImageHeight, file.ImageHeight), "sprite height in pixels")
	spacing := fs.Int("spacing", envOrInt(env, envSpacing, file.Spacing), "gap between sprites in pixels")
	tag := fs.String("tag", envOrDefault(env, envTag, file.Tag), "change tag applied to edits and uploads")
	user := fs.String("user", envOrDefault(env, envUser, file.User), "bot password user name")
	stateFile := fs.String("state-file", envOrDefault(env, envStateFile, file.StateFile), "path to the persisted state file")
	dropDir := fs.String("drop-dir", envOrDefault(env, envDropDir, file.DropDir), "directory watched for new sprite images")
	watch := fs.String("watch-interval", envOrDefault(env, envWatchInterval, file.WatchInterval), "how often to check the IDs page for edits (0 disables)")
	footer := fs.Bool("footer", envOrBool(env, envFooter, file.Footer), "show the key help line")
	trace := fs.Bool("trace", envOrBool(env, envTrace, file.Trace), "enable verbose JSON trace logging")
	logFile := fs.String("log-file", envOrDefault(env, envLogFile, file.LogFile), "path to the log file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	interval, err := time.ParseDuration(*watch)
	if err != nil {
		return Config{}, fmt.Errorf("watch-interval: %w", err)
	}

	cfg := Config{
		App: app.Config{
			API:           strings.TrimSpace(*api),
			Page:          strings.TrimSpace(*page),
			PageID:        *pageID,
			SheetFile:     strings.TrimSpace(*sheetFile),
			SheetURL:      strings.TrimSpace(*sheetURL),
			ImageWidth:    *width,
			ImageHeight:   *height,
			Spacing:       *spacing,
			Tag:           strings.TrimSpace(*tag),
			User:          *user,
			Password:      env[envPassword],
			StateFile:     *stateFile,
			DropDir:       *dropDir,
			WatchInterval: interval,
			ShowFooter:    *footer,
		},
		Logging: Logging{
			FilePath: *logFile,
			Trace:    *trace,
		},
		File: path,
		Flags: map[string]string{
			"api":           *api,
			"page":          *page,
			"pageID":        strconv.Itoa(*pageID),
			"sheetFile":     *sheetFile,
			"sheetURL":      *sheetURL,
			"imageWidth":    strconv.Itoa(*width),
			"imageHeight":   strconv.Itoa(*height),
			"spacing":       strconv.Itoa(*spacing),
			"tag":           *tag,
			"user":          *user,
			"stateFile":     *stateFile,
			"dropDir":       *dropDir,
			"watchInterval": interval.String(),
			"footer":        strconv.FormatBool(*footer),
			"trace":         strconv.FormatBool(*trace),
			"logFile":       *logFile,
		},
		Args: append([]string(nil), args...),
	}

	return cfg, nil
}

// configArg finds -config before the full parse so the file can seed the
// flag defaults.
func configArg(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func parseEnv(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}

func envOrDefault(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok {
		return v
	}
	return fallback
}

func envOrInt(env map[string]string, key string, fallback int) int {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(env map[string]string, key string, fallback bool) bool {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad returns configuration or exits.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// Validate ensures the wiki and sheet are identified and sizes make sense.
func Validate(cfg Config) error {
	a := cfg.App
	var errs []error
	if a.API == "" {
		errs = append(errs, errors.New("api is required"))
	}
	if a.PageID <= 0 {
		errs = append(errs, fmt.Errorf("page-id must be > 0 (got %d)", a.PageID))
	}
	if a.SheetFile == "" && a.SheetURL == "" {
		errs = append(errs, errors.New("sheet-file or sheet-url is required"))
	}
	if a.ImageWidth <= 0 || a.ImageHeight <= 0 {
		errs = append(errs, fmt.Errorf("image size must be positive (got %dx%d)", a.ImageWidth, a.ImageHeight))
	}
	if a.Spacing < 0 {
		errs = append(errs, fmt.Errorf("spacing must be >= 0 (got %d)", a.Spacing))
	}
	if a.WatchInterval < 0 {
		errs = append(errs, fmt.Errorf("watch-interval must be >= 0 (got %s)", a.WatchInterval))
	}
	if a.User != "" && a.Password == "" {
		errs = append(errs, fmt.Errorf("%s must be set when user is given", envPassword))
	}
	return errors.Join(errs...)
}
