package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Addr            string
		DebugAddr       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	Config struct {
		AppName  string
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		DefaultFromName  string
		DefaultFromAddr  string
		DefaultCountry   string
		FrontendBaseURL  string
		EmailBackend     string // console (default) | sendgrid | ses
		SendgridApiKey   string
		AwsRegion        string
		RollbarToken     string
		MediaRoot        string
		MediaBaseURL     string
		FranchiseIDSpace int // digits in a generated franchise ID

		Server   ServerConfig
		Database DatabaseConfig
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.DefaultFromName, Address: conf.DefaultFromAddr}
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "SK Edutech")
	v.SetDefault("defaultFromName", "SK Edutech")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultCountry", "India")
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("emailBackend", "console")
	v.SetDefault("mediaRoot", "media")
	v.SetDefault("mediaBaseUrl", "http://localhost:8000/media")
	v.SetDefault("franchiseIdSpace", 6)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugAddr", ":8001")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "skedutech")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTls", true)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		AppName:  v.GetString("appName"),
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		WorkDir:  wd,

		DefaultFromName:  v.GetString("defaultFromName"),
		DefaultFromAddr:  v.GetString("defaultFromEmail"),
		DefaultCountry:   v.GetString("defaultCountry"),
		FrontendBaseURL:  v.GetString("frontendBaseUrl"),
		EmailBackend:     v.GetString("emailBackend"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		AwsRegion:        v.GetString("awsRegion"),
		RollbarToken:     v.GetString("rollbarToken"),
		MediaRoot:        v.GetString("mediaRoot"),
		MediaBaseURL:     v.GetString("mediaBaseUrl"),
		FranchiseIDSpace: v.GetInt("franchiseIdSpace"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugAddr:       v.GetString("server.debugAddr"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			DisableTLS:    v.GetBool("database.disableTls"),
		},
	}
}

func (conf DatabaseConfig) Address() string {
	return conf.Host + ":" + conf.Port
}
