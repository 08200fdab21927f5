package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/gubarz/mdview/internal/preprocess"
	"github.com/gubarz/mdview/internal/rendercache"
)

// Config holds the application configuration
type Config struct {
	RenderMath         bool   `mapstructure:"render_math"`
	RenderMermaid      bool   `mapstructure:"render_mermaid"`
	AutoDetectCodeLang bool   `mapstructure:"auto_detect_code_lang"`
	AutolinkURLs       bool   `mapstructure:"autolink_urls"`
	GitHubLinks        bool   `mapstructure:"github_links"`
	ReplaceEmoji       bool   `mapstructure:"replace_emoji"`
	SmartTypography    bool   `mapstructure:"smart_typography"`
	ShowOutline        bool   `mapstructure:"show_outline"`
	AutoReload         bool   `mapstructure:"auto_reload"`
	Theme              string `mapstructure:"theme"`
	TextColor          string `mapstructure:"text_color"`
	MathCommand        string `mapstructure:"math_command"`
	MermaidURL         string `mapstructure:"mermaid_url"`
	Listen             string `mapstructure:"listen"`
	LogFile            string `mapstructure:"log_file"`
}

// C is the global config instance
var C Config

// Init initializes configuration with viper
func Init() error {
	SetDefaults()

	viper.SetConfigName("mdview")
	viper.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "mdview"))
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("MDVIEW")
	viper.AutomaticEnv()

	// Try to read config, but don't fail if not found or malformed
	_ = viper.ReadInConfig()

	return viper.Unmarshal(&C)
}

// SetDefaults registers the default of every key
func SetDefaults() {
	viper.SetDefault("render_math", true)
	viper.SetDefault("render_mermaid", true)
	viper.SetDefault("auto_detect_code_lang", true)
	viper.SetDefault("autolink_urls", true)
	viper.SetDefault("github_links", true)
	viper.SetDefault("replace_emoji", true)
	viper.SetDefault("smart_typography", false)
	viper.SetDefault("show_outline", true)
	viper.SetDefault("auto_reload", false)
	viper.SetDefault("theme", "dark")
	viper.SetDefault("text_color", "#dcdcdc")
	viper.SetDefault("math_command", rendercache.DefaultTeXCommand)
	viper.SetDefault("mermaid_url", rendercache.DefaultKrokiURL)
	viper.SetDefault("listen", "127.0.0.1:7878")
	viper.SetDefault("log_file", "")
}

// Options returns the preprocessing toggles
func Options() preprocess.Options {
	return preprocess.Options{
		RenderMath:         viper.GetBool("render_math"),
		RenderMermaid:      viper.GetBool("render_mermaid"),
		AutoDetectCodeLang: viper.GetBool("auto_detect_code_lang"),
		AutolinkURLs:       viper.GetBool("autolink_urls"),
		GitHubLinks:        viper.GetBool("github_links"),
		ReplaceEmoji:       viper.GetBool("replace_emoji"),
		SmartTypography:    viper.GetBool("smart_typography"),
	}
}

// GetShowOutline returns whether the outline pane starts visible
func GetShowOutline() bool {
	return viper.GetBool("show_outline")
}

// GetAutoReload returns whether changed files are reloaded automatically
func GetAutoReload() bool {
	return viper.GetBool("auto_reload")
}

// GetTheme returns the theme name
func GetTheme() string {
	return viper.GetString("theme")
}

// GetTextColor returns the math text color, falling back to the default
// when the configured value does not parse
func GetTextColor() rendercache.Color {
	if c, err := rendercache.ParseColor(viper.GetString("text_color")); err == nil {
		return c
	}
	c, _ := rendercache.ParseColor("#dcdcdc")
	return c
}

// GetMathCommand returns the TeX to SVG command line
func GetMathCommand() string {
	return viper.GetString("math_command")
}

// GetMermaidURL returns the Kroki endpoint
func GetMermaidURL() string {
	return viper.GetString("mermaid_url")
}

// GetListen returns the preview server address
func GetListen() string {
	return viper.GetString("listen")
}

// GetLogFile returns the log file path with tilde expansion
func GetLogFile() string {
	return expandTilde(viper.GetString("log_file"))
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// SetTheme sets the theme at runtime
func SetTheme(theme string) {
	viper.Set("theme", theme)
	C.Theme = theme
}

// SetAutoReload sets auto-reload at runtime
func SetAutoReload(on bool) {
	viper.Set("auto_reload", on)
	C.AutoReload = on
}

// SetShowOutline sets outline visibility at runtime
func SetShowOutline(on bool) {
	viper.Set("show_outline", on)
	C.ShowOutline = on
}

// SetOptions stores the preprocessing toggles at runtime
func SetOptions(opts preprocess.Options) {
	viper.Set("render_math", opts.RenderMath)
	viper.Set("render_mermaid", opts.RenderMermaid)
	viper.Set("auto_detect_code_lang", opts.AutoDetectCodeLang)
	viper.Set("autolink_urls", opts.AutolinkURLs)
	viper.Set("github_links", opts.GitHubLinks)
	viper.Set("replace_emoji", opts.ReplaceEmoji)
	viper.Set("smart_typography", opts.SmartTypography)

	C.RenderMath = opts.RenderMath
	C.RenderMermaid = opts.RenderMermaid
	C.AutoDetectCodeLang = opts.AutoDetectCodeLang
	C.AutolinkURLs = opts.AutolinkURLs
	C.GitHubLinks = opts.GitHubLinks
	C.ReplaceEmoji = opts.ReplaceEmoji
	C.SmartTypography = opts.SmartTypography
}
