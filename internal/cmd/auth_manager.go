package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lightspeed-tools/lightspeed-auth/internal/callback"
	"github.com/lightspeed-tools/lightspeed-auth/internal/config"
	"github.com/lightspeed-tools/lightspeed-auth/internal/secret"
	"github.com/lightspeed-tools/lightspeed-auth/internal/util"
	sdkAuth "github.com/lightspeed-tools/lightspeed-auth/sdk/auth"
)

// Options controls command behavior from command-line flags.
type Options struct {
	// NoBrowser prints authorization URLs instead of opening a browser.
	NoBrowser bool
	// CallbackPort overrides the configured OAuth callback port.
	CallbackPort int
}

// runtimeState bundles everything a command needs and its shutdown hook.
type runtimeState struct {
	manager *sdkAuth.Manager
	close   func()
}

// newRuntime wires the file secret store, the store watcher, the callback
// server, and the session manager together for one command invocation.
func newRuntime(cfg *config.Config, options *Options) (*runtimeState, error) {
	if options == nil {
		options = &Options{}
	}

	store, err := secret.NewFileStore(cfg.AuthDir)
	if err != nil {
		return nil, err
	}

	port := cfg.CallbackPort
	if options.CallbackPort > 0 {
		port = options.CallbackPort
	}
	server := callback.NewServer(port)
	if err = server.Start(); err != nil {
		return nil, fmt.Errorf("start callback server: %w", err)
	}

	httpClient := util.SetProxy(cfg.ProxyURL, &http.Client{Timeout: 30 * time.Second})

	var rhsso *sdkAuth.RHSSOConfig
	if cfg.RHSSOAvailable {
		rhsso = &sdkAuth.RHSSOConfig{
			AuthURL:  cfg.RHSSO.AuthURL,
			TokenURL: cfg.RHSSO.TokenURL,
			ClientID: cfg.RHSSO.ClientID,
		}
	}

	manager := sdkAuth.NewManager(sdkAuth.ManagerOptions{
		Environment: &terminalEnvironment{noBrowser: options.NoBrowser},
		Source:      server,
		Secrets:     store,
		HTTPClient:  httpClient,
		BaseURL:     cfg.ServiceURL,
		RHSSO:       rhsso,
		PreferRHSSO: cfg.PreferRHSSO,
		HostKind:    sdkAuth.HostLocal,
		CallbackURI: server.URI(),
	})

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	watcher, err := secret.NewWatcher(store, manager.OnStoreChanged)
	if err == nil {
		if err = watcher.Start(watchCtx); err != nil {
			log.WithField("error", err).Warn("credential watcher disabled")
		}
	} else {
		log.WithField("error", err).Warn("credential watcher disabled")
		watcher = nil
	}

	closeFn := func() {
		cancelWatch()
		if watcher != nil {
			_ = watcher.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Stop(shutdownCtx)
	}
	return &runtimeState{manager: manager, close: closeFn}, nil
}
