// Package main provides the entry point for the Lightspeed authentication CLI.
// The tool logs users in to the Ansible Lightspeed service via OAuth with PKCE,
// keeps the stored tokens fresh, and prints access tokens for other tooling.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/lightspeed-tools/lightspeed-auth/internal/buildinfo"
	"github.com/lightspeed-tools/lightspeed-auth/internal/cmd"
	"github.com/lightspeed-tools/lightspeed-auth/internal/config"
	"github.com/lightspeed-tools/lightspeed-auth/internal/logging"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main is the entry point of the application.
// It parses command-line flags, loads configuration, and runs the requested
// command (login, logout, status, or token).
func main() {
	fmt.Printf("Lightspeed Auth Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	// Command-line flags to control the application's behavior.
	var login bool
	var rhssoLogin bool
	var logout bool
	var status bool
	var token bool
	var noBrowser bool
	var callbackPort int
	var configPath string

	// Define command-line flags for the different operation modes.
	flag.BoolVar(&login, "login", false, "Login to Ansible Lightspeed using OAuth")
	flag.BoolVar(&rhssoLogin, "rhsso-login", false, "Login through Red Hat SSO first")
	flag.BoolVar(&logout, "logout", false, "Remove the stored Lightspeed session")
	flag.BoolVar(&status, "status", false, "Show the current session and entitlements")
	flag.BoolVar(&token, "token", false, "Print a fresh access token")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.IntVar(&callbackPort, "callback-port", 0, "Override OAuth callback port (defaults to the configured port)")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")

	// Parse the command-line flags.
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("failed to load configuration: %v", err)
		return
	}

	logging.SetLogLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		if errLog := logging.ConfigureFileOutput(cfg.LogFile); errLog != nil {
			log.WithError(errLog).Warn("failed to configure log file output")
		}
	}

	options := &cmd.Options{
		NoBrowser:    noBrowser,
		CallbackPort: callbackPort,
	}

	switch {
	case login:
		cmd.DoLogin(cfg, options)
	case rhssoLogin:
		cfg.PreferRHSSO = true
		cmd.DoLogin(cfg, options)
	case logout:
		cmd.DoLogout(cfg)
	case status:
		cmd.DoStatus(cfg)
	case token:
		cmd.DoToken(cfg)
	default:
		flag.Usage()
	}
}
