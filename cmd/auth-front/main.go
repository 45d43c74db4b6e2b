package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/auth-front/internal"
	"github.com/dgellow/auth-front/internal/config"
	"github.com/dgellow/auth-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v1",
		"proxy": map[string]any{
			"baseURL": "https://app.yourcompany.com",
			"addr":    ":8080",
			"name":    "auth-front",
		},
		"routes": map[string]any{
			"profilePath":       "/profile",
			"resetPasswordPath": "/reset-password",
			"loginPath":         "/login",
		},
		"provider": map[string]any{
			"tokenURL":     "https://idp.yourcompany.com/oauth/token",
			"userInfoURL":  "https://idp.yourcompany.com/userinfo",
			"clientId":     map[string]string{"$env": "IDP_CLIENT_ID"},
			"clientSecret": map[string]string{"$env": "IDP_CLIENT_SECRET"},
		},
		"intentStorage": map[string]any{
			"kind": "memory",
			"ttl":  "30m",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	fmt.Printf("Validating: %s\n", path)

	_, err := config.Load(path)
	if err != nil {
		fmt.Printf("\nError:\n  - %s\n\n", err)
		fmt.Println("Result: FAIL")
		return err
	}

	fmt.Println("\nResult: PASS")
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting auth-front", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	ctx := context.Background()
	authFront, err := internal.NewAuthFront(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create auth front: %v", err)
		os.Exit(1)
	}

	err = authFront.Run()
	if err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
