package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/termchat-cli/internal/utils"
)

const (
	dirName          = ".termchat"
	configName       = "config"
	credentialsName  = "credentials.env"
	defaultTimeout   = 30
	defaultMaxTokens = 4096
)

// Global configuration structure.
type Global struct {
	// CredentialsFile is the provider key store. Blank resolves to
	// ~/.termchat/credentials.env.
	CredentialsFile string  `mapstructure:"credentials_file" yaml:"credentials_file"`
	HTTPTimeoutSec  int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"min=1,max=600"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"min=1"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"omitempty,oneof=console json"`

	// Inputs answered locally without contacting a provider. Defaults apply
	// until the config file carries its own map, even an empty one.
	CannedReplies map[string]string `mapstructure:"canned_replies" yaml:"canned_replies" validate:"dive,keys,required,endkeys,required"`
}

// DefaultCannedReplies returns the built-in local replies.
func DefaultCannedReplies() map[string]string {
	return map[string]string{
		"hello":     "Hello! I'm ready to help. What can I do for you?",
		"hi":        "Hi! How can I help?",
		"hey":       "Hey there! What do you need?",
		"bye":       "Goodbye! See you soon. 👋",
		"goodbye":   "Goodbye, and thanks for chatting! 👋",
		"thanks":    "You're welcome! 😊",
		"thank you": "You're welcome! 😊",
	}
}

// Timeout returns the HTTP timeout as a duration.
func (c *Global) Timeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// Dir returns ~/.termchat.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.termchat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	if err := Validate(c); err != nil {
		return err
	}
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, configName+".yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TERMCHAT")
	v.AutomaticEnv()

	v.SetDefault("credentials_file", "")
	v.SetDefault("http_timeout_sec", defaultTimeout)
	v.SetDefault("max_tokens", defaultMaxTokens)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit --config path that does not exist surfaces as a
		// PathError instead of ConfigFileNotFoundError.
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if !v.InConfig("canned_replies") {
		c.CannedReplies = DefaultCannedReplies()
	}
	if c.CredentialsFile == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.CredentialsFile = filepath.Join(dir, credentialsName)
	} else {
		path, err := utils.ExpandHome(c.CredentialsFile)
		if err != nil {
			return nil, err
		}
		c.CredentialsFile = path
	}
	return &c, nil
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	trans    ut.Translator
)

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})
	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, trans)
}

// Validate checks value ranges. The error lists every offending key, sorted.
func Validate(c *Global) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := e.Translate(trans)
		if e.Tag() == "oneof" {
			msg = fmt.Sprintf("%s must be one of [%s]", e.Field(), strings.ReplaceAll(e.Param(), " ", ", "))
		}
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
