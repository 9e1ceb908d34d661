package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nicolaspernoud/vestibule/internal/auth"
	"github.com/nicolaspernoud/vestibule/internal/config"
)

func init() {
	var generate bool

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Bootstrap the initial ADMINS user in the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(generate)
		},
	}
	setupCmd.Flags().BoolVar(&generate, "generate-password", false, "generate a random password instead of prompting")
	rootCmd.AddCommand(setupCmd)
}

// runSetup creates (or replaces) the first ADMINS-role user, reading
// the password with no terminal echo via golang.org/x/term, or
// generating one via sethvargo/go-password when --generate-password is
// set — grounded in the teacher's cmd/.../setup.go interactive
// bootstrap flow, adapted from a database-backed user table to
// vestibule's declarative config document.
func runSetup(generate bool) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("admin login: ")
	login, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read login: %w", err)
	}
	login = strings.TrimSpace(login)
	if login == "" {
		return fmt.Errorf("login must not be empty")
	}

	var plaintext string
	if generate {
		plaintext, err = password.Generate(20, 6, 4, false, false)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}
		fmt.Println("generated password:", plaintext)
	} else {
		fmt.Print("admin password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		plaintext = string(raw)
		if plaintext == "" {
			return fmt.Errorf("password must not be empty")
		}
	}

	hash, err := auth.HashPassword(plaintext)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	replaced := false
	for i := range cfg.Users {
		if cfg.Users[i].Login == login {
			cfg.Users[i].Password = hash
			cfg.Users[i].Roles = ensureAdmins(cfg.Users[i].Roles)
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Users = append(cfg.Users, config.User{
			Login:    login,
			Password: hash,
			Roles:    []string{"ADMINS"},
		})
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := config.SaveToFile(cfg, configFile); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("admin user %q ready in %s\n", login, configFile)
	return nil
}

func ensureAdmins(roles []string) []string {
	for _, r := range roles {
		if r == "ADMINS" {
			return roles
		}
	}
	return append(roles, "ADMINS")
}
