package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration. Values come from the
// `default` tags, then the YAML file, then the environment variable
// named by each `env` tag.
type Config struct {
	Listen   string  `yaml:"listen" env:"LISTEN" default:":3002"`
	LogLevel string  `yaml:"log_level" env:"LOG_LEVEL" default:"info"`
	CORS     CORS    `yaml:"cors"`
	Storage  Storage `yaml:"storage"`
	Auth     Auth    `yaml:"auth"`
	Editor   Editor  `yaml:"editor"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type Storage struct {
	Type           string `yaml:"type" env:"STORAGE_TYPE" default:"memory"`
	LocalPath      string `yaml:"local_path" env:"LOCAL_STORAGE_PATH" default:"./data"`
	DataSourceName string `yaml:"data_source_name" env:"DATA_SOURCE_NAME" default:"tag-designer.db"`
	S3             S3     `yaml:"s3"`
}

type S3 struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET_NAME"`
	Region          string `yaml:"region" env:"S3_REGION"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
}

type Auth struct {
	JWTSecret   string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" default:"168h"`
	FrontendURL string        `yaml:"frontend_url" env:"FRONTEND_URL" default:"/"`
	GitHub      OAuthProvider `yaml:"github"`
	OIDC        OIDCProvider  `yaml:"oidc"`
}

type OAuthProvider struct {
	ClientID     string `yaml:"client_id" env:"GITHUB_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GITHUB_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url" env:"GITHUB_REDIRECT_URL"`
}

type OIDCProvider struct {
	IssuerURL    string `yaml:"issuer_url" env:"OIDC_ISSUER_URL"`
	ClientID     string `yaml:"client_id" env:"OIDC_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url" env:"OIDC_REDIRECT_URL"`
}

type Editor struct {
	AutosaveDelay time.Duration `yaml:"autosave_delay" env:"AUTOSAVE_DELAY" default:"5s"`
	CanvasWidth   float64       `yaml:"canvas_width" env:"CANVAS_WIDTH" default:"800"`
	CanvasHeight  float64       `yaml:"canvas_height" env:"CANVAS_HEIGHT" default:"600"`
	GridSize      float64       `yaml:"grid_size" env:"GRID_SIZE" default:"20"`
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist) and getenv. A nil getenv
// reads the process environment.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := &Config{}
	if err := walk(reflect.ValueOf(cfg), "default", func(string) string { return "" }); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("path", path).Info("Config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := walk(reflect.ValueOf(cfg), "env", getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// walk sets every leaf field whose tag names a value. For the "default"
// tag the tag text is the value itself; for "env" it is looked up.
func walk(v reflect.Value, tag string, lookup func(string) string) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := walk(field.Addr(), tag, lookup); err != nil {
				return err
			}
			continue
		}

		name := fieldType.Tag.Get(tag)
		if name == "" {
			continue
		}
		value := name
		if tag == "env" {
			value = lookup(name)
		}
		if value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("config %s %q: %w", tag, name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		val, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(val)
	case reflect.Int:
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(val)
	case reflect.Float64:
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(val)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				slice = reflect.Append(slice, reflect.ValueOf(part))
			}
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.Storage.Type {
	case "memory", "filesystem", "sqlite":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3_BUCKET_NAME must be set for s3 storage type")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Editor.AutosaveDelay <= 0 {
		return fmt.Errorf("autosave delay must be positive, got %s", c.Editor.AutosaveDelay)
	}
	if !(c.Editor.CanvasWidth > 0) || !(c.Editor.CanvasHeight > 0) {
		return fmt.Errorf("canvas size must be positive, got %vx%v", c.Editor.CanvasWidth, c.Editor.CanvasHeight)
	}
	if !(c.Editor.GridSize >= 1) {
		return fmt.Errorf("grid size must be at least 1, got %v", c.Editor.GridSize)
	}
	return nil
}

// GitHubEnabled reports whether GitHub login is configured.
func (a Auth) GitHubEnabled() bool {
	return a.GitHub.ClientID != "" && a.GitHub.ClientSecret != ""
}

// OIDCEnabled reports whether OIDC login is configured. It takes precedence over GitHub.
func (a Auth) OIDCEnabled() bool {
	return a.OIDC.IssuerURL != "" && a.OIDC.ClientID != ""
}
