package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/pdiddy/paper-loupe/internal/mailbox"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Authorize read-only Gmail access",
	Long: `Setup runs the Gmail OAuth consent flow once. It needs the OAuth client
credentials JSON downloaded from the Google Cloud console (an installed-app
client with the gmail.readonly scope). The flow prints an authorization
URL, waits for the code Google shows after consent, exchanges it, and
caches the token where later runs will find it.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().String("credentials", "", "OAuth client credentials JSON (overrides config)")
	setupCmd.Flags().String("token", "", "where to cache the exchanged token (overrides config)")

	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if v, _ := cmd.Flags().GetString("credentials"); v != "" {
		cfg.Mailbox.Credentials = expandHome(v)
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Mailbox.Token = expandHome(v)
	}

	oauthCfg, err := mailbox.LoadOAuthConfig(cfg.Mailbox.Credentials)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL in a browser and authorize access:\n\n  %s\n\n", authURL)
	fmt.Print("Paste the authorization code here: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code given")
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := mailbox.SaveToken(cfg.Mailbox.Token, tok); err != nil {
		return err
	}
	fmt.Printf("Token saved to %s\n", cfg.Mailbox.Token)

	source, err := mailbox.NewGmailSource(ctx, cfg.Mailbox)
	if err != nil {
		return err
	}
	if err := source.Probe(ctx); err != nil {
		return err
	}
	fmt.Println("Gmail access verified.")
	return nil
}
