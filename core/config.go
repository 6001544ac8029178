package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		WorkDir          string

		Server   ServerConfig
		Database DatabaseConfig
		Upload   UploadConfig
		Listing  ListingConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		CORSAllowOrigins          []string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		LogQueries    bool
	}

	UploadConfig struct {
		Dir       string // uploaded profile pictures
		PublicDir string // static assets (default avatar, logos, banners)
		MaxSize   int64  // bytes
	}

	ListingConfig struct {
		DefaultLimit int
		MaxLimit     int
		DefaultLang  string
	}
)

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

// NewConfig loads the configuration of the current environment (`ENV`: DEV (default), TEST, QA, PROD).
// Every key can be overridden with an `<ENV>_` prefixed environment variable, e.g. DEV_DB_HOST.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("test_mode", true)
		v.SetDefault("debug", false)
		v.SetDefault("db.name", "restorank_test")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("test_mode"),
		AppName:         v.GetString("app_name"),
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		SendgridApiKey:  v.GetString("sendgrid_api_key"),
		RollbarToken:    v.GetString("rollbar_token"),
		WorkDir:         wd,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debug_host"),
			ReadTimeout:               v.GetDuration("server.read_timeout"),
			WriteTimeout:              v.GetDuration("server.write_timeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			CORSAllowOrigins:          v.GetStringSlice("server.cors_allow_origins"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db.engine"),
			Host:          v.GetString("db.host"),
			Port:          v.GetString("db.port"),
			Name:          v.GetString("db.name"),
			User:          v.GetString("db.user"),
			Password:      v.GetString("db.password"),
			AdminUser:     v.GetString("db.admin_user"),
			AdminPassword: v.GetString("db.admin_password"),
			DisableTLS:    v.GetBool("db.disable_tls"),
			LogQueries:    v.GetBool("db.log_queries"),
		},
		Upload: UploadConfig{
			Dir:       absPath(wd, v.GetString("upload.dir")),
			PublicDir: absPath(wd, v.GetString("upload.public_dir")),
			MaxSize:   v.GetInt64("upload.max_size"),
		},
		Listing: ListingConfig{
			DefaultLimit: v.GetInt("listing.default_limit"),
			MaxLimit:     v.GetInt("listing.max_limit"),
			DefaultLang:  v.GetString("listing.default_lang"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config.mail.ParseAddress(%s): %v", v.GetString("default_from_email"), err)
	}
	conf.DefaultFromEmail = *from
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "Restorank")
	v.SetDefault("secret_key", "k2$3vp9&!xq7=ne@4rt+m0c1hz)gw#d8u5y(6jfa_olbis-e")
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("default_from_email", "Restorank <noreply@localhost>")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("jwt_expiration_delta", 8*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 7*24*time.Hour)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.debug_host", "localhost:4001")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_allow_origins", []string{"*"})

	v.SetDefault("db.engine", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.name", "restorank")
	v.SetDefault("db.user", "restorank")
	v.SetDefault("db.password", "restorank")
	v.SetDefault("db.admin_user", "postgres")
	v.SetDefault("db.admin_password", "postgres")
	v.SetDefault("db.disable_tls", true)
	v.SetDefault("db.log_queries", false)

	v.SetDefault("upload.dir", "profilePicUsers")
	v.SetDefault("upload.public_dir", "public")
	v.SetDefault("upload.max_size", int64(8<<20))

	v.SetDefault("listing.default_limit", 10)
	v.SetDefault("listing.max_limit", 50)
	v.SetDefault("listing.default_lang", LangArabic)
}

func absPath(wd, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(wd, p)
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s, build=%s, debug=%t)", c.AppName, c.Env, c.Build, c.Debug)
}
