package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/portside-labs/portside-mcp/internal/api"
	"github.com/portside-labs/portside-mcp/internal/auth"
	"github.com/portside-labs/portside-mcp/internal/chain"
	"github.com/portside-labs/portside-mcp/internal/config"
	"github.com/portside-labs/portside-mcp/internal/log"
	"github.com/portside-labs/portside-mcp/internal/session"
	"github.com/portside-labs/portside-mcp/internal/signer"
	"github.com/portside-labs/portside-mcp/internal/tools"
)

var BuildVersion = "dev"

func main() {
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(BuildVersion)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.LogError("Invalid configuration: %v", err)
		os.Exit(1)
	}

	client := api.New(cfg.Endpoints.APIBaseURL)

	login, err := buildLogin(cfg, client)
	if err != nil {
		log.LogError("Invalid configuration: %v", err)
		os.Exit(1)
	}

	sess := session.New(login)
	client.Bind(sess.Token, api.Hooks{
		BeforeRequest: sess.EnsureInit,
		OnUnauthorized: func(ctx context.Context) error {
			sess.Invalidate()
			return sess.EnsureInit(ctx)
		},
	})

	log.LogInfoWithFields("main", "Starting portside-mcp", map[string]any{
		"version": BuildVersion,
		"network": cfg.Network,
	})

	if err := server.ServeStdio(tools.NewServer(client, sess, BuildVersion)); err != nil {
		log.LogError("Server exited: %v", err)
		os.Exit(1)
	}
}

// buildLogin picks the login strategy from configuration: a wallet key means
// direct-key login, otherwise the browser-based zkLogin flow.
func buildLogin(cfg *config.Config, client *api.Client) (session.LoginFunc, error) {
	if cfg.WalletKey != "" {
		key, err := signer.ParsePrivateKey(string(cfg.WalletKey))
		if err != nil {
			return nil, fmt.Errorf("invalid PORTSIDE_WALLET_KEY: %w", err)
		}
		return auth.NewWalletAuthenticator(client, key).Login, nil
	}

	zk := auth.NewZkLoginAuthenticator(client, chain.New(cfg.Endpoints.RPCURL), auth.ZkLoginConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: string(cfg.GoogleClientSecret),
		ProverURL:    cfg.Endpoints.ProverURL,
		Port:         cfg.OAuthPort,
	})
	return zk.Login, nil
}
