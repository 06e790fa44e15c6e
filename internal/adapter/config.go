package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/fonts"
	"github.com/mmcdole/covergen/internal/retry"
	"github.com/mmcdole/covergen/internal/service"
)

// SourceType identifies the media server backend
type SourceType string

const (
	SourceTypeEmby     SourceType = "emby"
	SourceTypeJellyfin SourceType = "jellyfin"
)

// Default font origins
const (
	DefaultZhFontURL      = "https://raw.githubusercontent.com/justzerock/MoviePilot-Plugins/main/fonts/wendao.ttf"
	DefaultEnFontURL      = "https://raw.githubusercontent.com/google/fonts/main/ofl/emblemaone/EmblemaOne-Regular.ttf"
	DefaultZhMultiFontURL = "https://raw.githubusercontent.com/justzerock/MoviePilot-Plugins/main/fonts/multi_1_zh.ttf"
	DefaultEnMultiFontURL = "https://raw.githubusercontent.com/justzerock/MoviePilot-Plugins/main/fonts/multi_1_en.otf"
)

// Config holds all application configuration
type Config struct {
	Servers   []ServerConfig  `mapstructure:"servers"`
	Libraries LibrariesConfig `mapstructure:"libraries"`
	Cover     CoverConfig     `mapstructure:"cover"`
	Single    StyleConfig     `mapstructure:"single"`
	Multi     StyleConfig     `mapstructure:"multi"`
	Fonts     FontsConfig     `mapstructure:"fonts"`
	Network   NetworkConfig   `mapstructure:"network"`
	DataDir   string          `mapstructure:"data_dir"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds media server configuration
type ServerConfig struct {
	Name   string     `mapstructure:"name"`    // Used in history and exclusion keys
	Type   SourceType `mapstructure:"type"`    // "emby" or "jellyfin"
	URL    string     `mapstructure:"url"`     // Server URL
	APIKey string     `mapstructure:"api_key"` // Server API key
	UserID string     `mapstructure:"user_id"` // Optional; lists items as this user
}

// LibrariesConfig selects which libraries are updated and how items are listed
type LibrariesConfig struct {
	Exclude []string `mapstructure:"exclude"` // "<server>-<libraryId>" keys
	SortBy  string   `mapstructure:"sort_by"` // Random, DateCreated or PremiereDate
}

// CoverConfig holds the cover style and its inputs and outputs
type CoverConfig struct {
	Style        string `mapstructure:"style"`
	CoversInput  string `mapstructure:"covers_input"`  // Per-library custom image directories
	CoversOutput string `mapstructure:"covers_output"` // Copy of each generated cover
	Titles       string `mapstructure:"titles"`        // YAML title mapping
	TitlesFile   string `mapstructure:"titles_file"`   // File holding the YAML title mapping
}

// StyleConfig holds the rendering parameters of one style family
type StyleConfig struct {
	ZhFontSize  float64 `mapstructure:"zh_font_size"`
	EnFontSize  float64 `mapstructure:"en_font_size"`
	BlurSize    float64 `mapstructure:"blur_size"`
	ColorRatio  float64 `mapstructure:"color_ratio"`
	UsePrimary  bool    `mapstructure:"use_primary"`
	Blur        bool    `mapstructure:"blur"`          // multi_1 only
	UseMainFont bool    `mapstructure:"use_main_font"` // multi only
}

// FontsConfig holds the font origins of both style families
type FontsConfig struct {
	Main  FontSet `mapstructure:"main"`
	Multi FontSet `mapstructure:"multi"`
}

// FontSet is the Chinese and English font of one family
type FontSet struct {
	ZhURL  string `mapstructure:"zh_url"`
	EnURL  string `mapstructure:"en_url"`
	ZhPath string `mapstructure:"zh_path"` // Local override
	EnPath string `mapstructure:"en_path"` // Local override
}

// NetworkConfig holds font download settings
type NetworkConfig struct {
	MirrorBase  string        `mapstructure:"mirror_base"`
	MirrorHosts []string      `mapstructure:"mirror_hosts"`
	Proxy       string        `mapstructure:"proxy"`
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	params := domain.DefaultStyleParams()
	style := StyleConfig{
		ZhFontSize: params.ZhFontSizeRatio,
		EnFontSize: params.EnFontSizeRatio,
		BlurSize:   params.BlurRadius,
		ColorRatio: params.ColorMixRatio,
	}
	return &Config{
		Libraries: LibrariesConfig{
			SortBy: service.SortRandom,
		},
		Cover: CoverConfig{
			Style: string(domain.StyleSingle1),
		},
		Single: style,
		Multi:  style,
		Fonts: FontsConfig{
			Main:  FontSet{ZhURL: DefaultZhFontURL, EnURL: DefaultEnFontURL},
			Multi: FontSet{ZhURL: DefaultZhMultiFontURL, EnURL: DefaultEnMultiFontURL},
		},
		Network: NetworkConfig{
			MirrorHosts: fonts.DefaultMirrorHosts,
			Retries:     3,
			RetryDelay:  2 * time.Second,
			Timeout:     60 * time.Second,
		},
		DataDir: defaultDataPath(),
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "covergen.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "covergen")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "covergen")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "covergen")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "covergen")
	}
}

// DefaultConfigFile is where SaveConfig writes when no path is given
func DefaultConfigFile() string {
	return filepath.Join(defaultConfigPath(), "config.yaml")
}

// LoadConfig loads configuration from file and environment. An empty path
// searches the config directory and the working directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. COVERGEN_COVER_STYLE
	v.SetEnvPrefix("COVERGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// bindEnv registers the scalar keys so AutomaticEnv sees them during Unmarshal
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"libraries.sort_by",
		"cover.style", "cover.covers_input", "cover.covers_output", "cover.titles", "cover.titles_file",
		"network.mirror_base", "network.proxy",
		"data_dir",
		"logging.file", "logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

// SaveConfig writes the configuration to path, or to the default config file
func SaveConfig(cfg *Config, path string) (string, error) {
	if path == "" {
		path = DefaultConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()

	servers := make([]map[string]any, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, map[string]any{
			"name":    s.Name,
			"type":    string(s.Type),
			"url":     s.URL,
			"api_key": s.APIKey,
			"user_id": s.UserID,
		})
	}
	v.Set("servers", servers)

	v.Set("libraries.exclude", cfg.Libraries.Exclude)
	v.Set("libraries.sort_by", cfg.Libraries.SortBy)

	v.Set("cover.style", cfg.Cover.Style)
	v.Set("cover.covers_input", cfg.Cover.CoversInput)
	v.Set("cover.covers_output", cfg.Cover.CoversOutput)
	v.Set("cover.titles", cfg.Cover.Titles)
	v.Set("cover.titles_file", cfg.Cover.TitlesFile)

	setStyle(v, "single", cfg.Single)
	setStyle(v, "multi", cfg.Multi)
	v.Set("multi.blur", cfg.Multi.Blur)
	v.Set("multi.use_main_font", cfg.Multi.UseMainFont)

	setFontSet(v, "fonts.main", cfg.Fonts.Main)
	setFontSet(v, "fonts.multi", cfg.Fonts.Multi)

	v.Set("network.mirror_base", cfg.Network.MirrorBase)
	v.Set("network.mirror_hosts", cfg.Network.MirrorHosts)
	v.Set("network.proxy", cfg.Network.Proxy)
	v.Set("network.retries", cfg.Network.Retries)
	v.Set("network.retry_delay", cfg.Network.RetryDelay.String())
	v.Set("network.timeout", cfg.Network.Timeout.String())

	v.Set("data_dir", cfg.DataDir)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

func setStyle(v *viper.Viper, prefix string, s StyleConfig) {
	v.Set(prefix+".zh_font_size", s.ZhFontSize)
	v.Set(prefix+".en_font_size", s.EnFontSize)
	v.Set(prefix+".blur_size", s.BlurSize)
	v.Set(prefix+".color_ratio", s.ColorRatio)
	v.Set(prefix+".use_primary", s.UsePrimary)
}

func setFontSet(v *viper.Viper, prefix string, f FontSet) {
	v.Set(prefix+".zh_url", f.ZhURL)
	v.Set(prefix+".en_url", f.EnURL)
	v.Set(prefix+".zh_path", f.ZhPath)
	v.Set(prefix+".en_path", f.EnPath)
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if _, err := domain.ParseStyle(c.Cover.Style); err != nil {
		errs = append(errs, fmt.Errorf("cover.style: %w", err))
	}
	switch c.Libraries.SortBy {
	case "", service.SortRandom, service.SortDateCreated, service.SortPremiereDate:
	default:
		errs = append(errs, fmt.Errorf("libraries.sort_by: unknown sort key %q", c.Libraries.SortBy))
	}

	names := make(map[string]bool)
	for i, s := range c.Servers {
		field := fmt.Sprintf("servers[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", field))
		} else if names[s.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q is not unique", field, s.Name))
		}
		names[s.Name] = true
		switch s.Type {
		case SourceTypeEmby, SourceTypeJellyfin:
		default:
			errs = append(errs, fmt.Errorf("%s.type: unknown server type %q", field, s.Type))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required", field))
		}
		if s.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", field))
		}
	}

	errs = append(errs, c.Single.validate("single")...)
	errs = append(errs, c.Multi.validate("multi")...)

	if c.Network.Retries < 0 {
		errs = append(errs, errors.New("network.retries must not be negative"))
	}
	return errors.Join(errs...)
}

func (s StyleConfig) validate(section string) []error {
	var errs []error
	if s.ZhFontSize < 0 {
		errs = append(errs, fmt.Errorf("%s.zh_font_size must be positive", section))
	}
	if s.EnFontSize < 0 {
		errs = append(errs, fmt.Errorf("%s.en_font_size must be positive", section))
	}
	if s.BlurSize < 0 {
		errs = append(errs, fmt.Errorf("%s.blur_size must be positive", section))
	}
	if s.ColorRatio < 0 || s.ColorRatio > 1 {
		errs = append(errs, fmt.Errorf("%s.color_ratio must be within (0, 1]", section))
	}
	return errs
}

func (s StyleConfig) params() domain.StyleParams {
	return domain.StyleParams{
		ZhFontSizeRatio: s.ZhFontSize,
		EnFontSizeRatio: s.EnFontSize,
		BlurRadius:      s.BlurSize,
		ColorMixRatio:   s.ColorRatio,
		PreferPrimary:   s.UsePrimary,
		Blur:            s.Blur,
	}.Normalize()
}

// Options converts the configuration into the immutable pipeline options
func (c *Config) Options() (service.Options, error) {
	style, err := domain.ParseStyle(c.Cover.Style)
	if err != nil {
		return service.Options{}, err
	}

	opts := service.DefaultOptions()
	opts.Style = style
	if c.Libraries.SortBy != "" {
		opts.SortBy = c.Libraries.SortBy
	}
	opts.Exclude = append([]string(nil), c.Libraries.Exclude...)
	opts.CoversInput = expandHome(c.Cover.CoversInput)
	opts.CoversOutput = expandHome(c.Cover.CoversOutput)

	if style.Family() == domain.FamilyMulti {
		opts.Params = c.Multi.params()
		opts.UseMainFont = c.Multi.UseMainFont
	} else {
		opts.Params = c.Single.params()
	}
	return opts, nil
}

// FontConfig converts the configuration into the font resolver configuration
func (c *Config) FontConfig() fonts.Config {
	single := func(lang domain.FontLang) domain.FontRole {
		return domain.FontRole{Lang: lang, Family: domain.FamilySingle}
	}
	multi := func(lang domain.FontLang) domain.FontRole {
		return domain.FontRole{Lang: lang, Family: domain.FamilyMulti}
	}

	cfg := fonts.Config{
		Dir: filepath.Join(expandHome(c.DataDir), "fonts"),
		Sources: map[domain.FontRole]fonts.Source{
			single(domain.LangZh): {URL: c.Fonts.Main.ZhURL, LocalPath: expandHome(c.Fonts.Main.ZhPath)},
			single(domain.LangEn): {URL: c.Fonts.Main.EnURL, LocalPath: expandHome(c.Fonts.Main.EnPath)},
			multi(domain.LangZh):  {URL: c.Fonts.Multi.ZhURL, LocalPath: expandHome(c.Fonts.Multi.ZhPath)},
			multi(domain.LangEn):  {URL: c.Fonts.Multi.EnURL, LocalPath: expandHome(c.Fonts.Multi.EnPath)},
		},
		MirrorBase:  c.Network.MirrorBase,
		MirrorHosts: c.Network.MirrorHosts,
		Proxy:       c.Network.Proxy,
		Timeout:     c.Network.Timeout,
	}
	if c.Network.Retries > 0 {
		cfg.Policy = retry.Fixed(c.Network.Retries, c.Network.RetryDelay)
	}
	return cfg
}

// TitleConfig returns the YAML title mapping, read from titles_file when set
func (c *Config) TitleConfig() (string, error) {
	if c.Cover.TitlesFile == "" {
		return c.Cover.Titles, nil
	}
	data, err := os.ReadFile(expandHome(c.Cover.TitlesFile))
	if err != nil {
		return "", fmt.Errorf("failed to read titles file: %w", err)
	}
	return string(data), nil
}

// StorePath returns the data directory holding the history store
func (c *Config) StorePath() string {
	return expandHome(c.DataDir)
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
