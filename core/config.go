package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		Build        string
		RollbarToken string

		DataDir      string
		KeyFile      string
		StrongCipher bool
		NativeSem    bool

		Attachments   AttachmentsConfig
		Server        ServerConfig
		Accessibility AccessibilityConfig
	}

	AttachmentsConfig struct {
		Driver string // local | s3
		Dir    string

		S3Bucket          string
		S3Region          string
		S3AccessKeyID     string
		S3SecretAccessKey string
	}

	ServerConfig struct {
		Address                   string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	// AccessibilityConfig holds the defaults copied into every new session.
	AccessibilityConfig struct {
		Narration    bool
		HighContrast bool
		LargeText    bool
		FocusMode    bool
	}
)

// LoadConfig reads the configuration from defaults, the optional config/.env.<env> file and the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Estudos")
	v.SetDefault("secretKey", "n3x$w7=4k@b0(q!f-1zc8_yjm^r6tdu2e+p5ogha9lv)s#%i")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("dataDir", "BD")
	v.SetDefault("keyFile", "")
	v.SetDefault("cipher.strong", true)
	v.SetDefault("semester.native", true)
	v.SetDefault("attachments.driver", "local")
	v.SetDefault("attachments.dir", "")
	v.SetDefault("attachments.s3.bucket", "")
	v.SetDefault("attachments.s3.region", "us-east-1")
	v.SetDefault("attachments.s3.accessKeyID", "")
	v.SetDefault("attachments.s3.secretAccessKey", "")
	v.SetDefault("server.address", "127.0.0.1:8000")
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("accessibility.narration", false)
	v.SetDefault("accessibility.highContrast", false)
	v.SetDefault("accessibility.largeText", false)
	v.SetDefault("accessibility.focusMode", false)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		DataDir:      v.GetString("dataDir"),
		KeyFile:      v.GetString("keyFile"),
		StrongCipher: v.GetBool("cipher.strong"),
		NativeSem:    v.GetBool("semester.native"),
		Attachments: AttachmentsConfig{
			Driver:            v.GetString("attachments.driver"),
			Dir:               v.GetString("attachments.dir"),
			S3Bucket:          v.GetString("attachments.s3.bucket"),
			S3Region:          v.GetString("attachments.s3.region"),
			S3AccessKeyID:     v.GetString("attachments.s3.accessKeyID"),
			S3SecretAccessKey: v.GetString("attachments.s3.secretAccessKey"),
		},
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Accessibility: AccessibilityConfig{
			Narration:    v.GetBool("accessibility.narration"),
			HighContrast: v.GetBool("accessibility.highContrast"),
			LargeText:    v.GetBool("accessibility.largeText"),
			FocusMode:    v.GetBool("accessibility.focusMode"),
		},
	}
	conf.resolvePaths()
	return conf, nil
}

// resolvePaths fills the file locations that default to paths under DataDir.
func (c *Config) resolvePaths() {
	if c.KeyFile == "" {
		c.KeyFile = filepath.Join(c.DataDir, "secret.key")
	}
	if c.Attachments.Dir == "" {
		c.Attachments.Dir = filepath.Join(c.DataDir, "attachments")
	}
}

// TestConfig returns a configuration rooted at dataDir, suitable for tests.
func TestConfig(dataDir string) *Config {
	c := &Config{
		Env:          "TEST",
		TestMode:     true,
		AppName:      "Estudos",
		SecretKey:    "test-secret",
		Build:        "test",
		DataDir:      dataDir,
		StrongCipher: true,
		NativeSem:    true,
		Attachments:  AttachmentsConfig{Driver: "local"},
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
	}
	c.resolvePaths()
	return c
}
