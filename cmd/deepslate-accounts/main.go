package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/app"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("deepslate-accounts %s\n", app.BuildVersion)
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "login":
		return runLogin(ctx, application)
	case "list":
		return runList(application)
	case "use":
		return runUse(application, os.Args[2:])
	case "offline":
		return runOffline(application, os.Args[2:])
	case "refresh":
		return runRefresh(ctx, application, os.Args[2:])
	case "token":
		return runToken(ctx, application, os.Args[2:])
	case "remove":
		return runRemove(application, os.Args[2:])
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: deepslate-accounts <subcommand> [flags]

Subcommands:
  login     Sign in with a Microsoft account
  list      List stored accounts
  use       Mark an account as active
  offline   Add an offline account
  refresh   Refresh an account's credentials
  token     Print a launcher token for an account
  remove    Remove an account
  version   Print version information

Run 'deepslate-accounts <subcommand> --help' for subcommand flags.
`)
}

// runLogin walks the interactive sign-in: the user opens the printed
// URL, signs in, and pastes the redirect URL back.
func runLogin(ctx context.Context, application *app.Application) error {
	loginFlow, err := application.Flow.BeginLogin(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Open this URL in a browser and sign in:\n\n  %s\n\n", loginFlow.RedirectURI)
	fmt.Fprintf(os.Stderr, "After signing in, paste the URL you were redirected to:\n> ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading redirect url: %w", err)
		}
		return fmt.Errorf("no redirect url provided")
	}
	code, err := extractCode(scanner.Text())
	if err != nil {
		return err
	}

	acct, err := application.Flow.FinishLogin(ctx, code, loginFlow)
	if err != nil {
		return err
	}
	if err := application.Store.SetActiveAccount(acct.ID); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Logged in as %s (%s)\n", acct.Username, acct.ID)
	return nil
}

// extractCode pulls the authorization code out of a pasted redirect URL.
// A bare code pastes through unchanged.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty redirect url")
	}
	if u, err := url.Parse(input); err == nil {
		if code := u.Query().Get("code"); code != "" {
			return code, nil
		}
	}
	return input, nil
}

func runList(application *app.Application) error {
	accounts := application.Store.Accounts()
	if len(accounts) == 0 {
		fmt.Println("No accounts stored. Run 'deepslate-accounts login' to add one.")
		return nil
	}

	for _, acct := range accounts {
		marker := " "
		if acct.Active {
			marker = "*"
		}
		kind := "microsoft"
		if acct.Offline() {
			kind = "offline"
		}
		fmt.Printf("%s %-36s  %-20s  %s\n", marker, acct.ID, acct.Username, kind)
	}
	return nil
}

func runUse(application *app.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: deepslate-accounts use <account id or username>")
	}
	acct, err := resolveAccount(application, args[0])
	if err != nil {
		return err
	}
	if err := application.Store.SetActiveAccount(acct.ID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Active account is now %s\n", acct.Username)
	return nil
}

func runOffline(application *app.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: deepslate-accounts offline <username>")
	}
	acct, err := application.Store.AddOfflineAccount(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Added offline account %s (%s)\n", acct.Username, acct.ID)
	return nil
}

func runRefresh(ctx context.Context, application *app.Application, args []string) error {
	flags := pflag.NewFlagSet("refresh", pflag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "refresh even when the cached credentials are still fresh")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	acct, err := resolveAccount(application, flags.Arg(0))
	if err != nil {
		return err
	}
	if acct.Offline() {
		return fmt.Errorf("%s is an offline account", acct.Username)
	}

	refreshed, err := application.Store.RefreshAccount(ctx, acct.ID, *force)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Credentials for %s valid until %s\n",
		refreshed.Username, refreshed.Expires.Local().Format(time.RFC1123))
	return nil
}

func runToken(ctx context.Context, application *app.Application, args []string) error {
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	modeFlag := flags.String("mode", "", "launcher token mode (production, experimental); defaults to the configured mode")
	force := flags.BoolP("force", "f", false, "mint a new token even when the stored one looks fresh")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	mode := application.Mode()
	if *modeFlag != "" {
		switch m := domain.LauncherMode(*modeFlag); m {
		case domain.ModeProduction, domain.ModeExperimental:
			mode = m
		default:
			return fmt.Errorf("unknown mode %q", *modeFlag)
		}
	}

	acct, err := resolveAccount(application, flags.Arg(0))
	if err != nil {
		return err
	}
	if acct.Offline() {
		return fmt.Errorf("%s is an offline account", acct.Username)
	}

	refreshed, err := application.Store.RefreshLauncherToken(ctx, acct.ID, mode, *force)
	if err != nil {
		return err
	}
	token := refreshed.LauncherTokens.Get(mode)
	if token == "" {
		return fmt.Errorf("no launcher token available for %s", acct.Username)
	}

	// The token goes to stdout so it can be piped; everything else in
	// this command talks to stderr.
	fmt.Println(token)
	return nil
}

func runRemove(application *app.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: deepslate-accounts remove <account id or username>")
	}
	acct, err := resolveAccount(application, args[0])
	if err != nil {
		return err
	}
	if err := application.Store.RemoveAccount(acct.ID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Removed account %s\n", acct.Username)
	return nil
}

// resolveAccount finds an account by id or username. An empty argument
// resolves to the active account.
func resolveAccount(application *app.Application, arg string) (domain.Account, error) {
	accounts := application.Store.Accounts()
	if arg == "" {
		for _, acct := range accounts {
			if acct.Active {
				return acct, nil
			}
		}
		return domain.Account{}, fmt.Errorf("no active account; run 'deepslate-accounts use <account>' first")
	}
	for _, acct := range accounts {
		if acct.ID == arg || strings.EqualFold(acct.Username, arg) {
			return acct, nil
		}
	}
	return domain.Account{}, fmt.Errorf("no account matches %q", arg)
}
