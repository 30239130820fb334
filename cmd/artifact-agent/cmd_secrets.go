package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const tokenBytes = 32

func newSecretsCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage provider API keys and caller tokens",
		Long: `Secrets live in secrets.json inside the state directory (mode 0600).
Provider keys set through environment variables take precedence.`,
	}

	var (
		provider string
		fallback bool
	)
	setKey := &cobra.Command{
		Use:   "set-key",
		Short: "Store a provider API key (read from the terminal or stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := requireProvider(a, provider); err != nil {
				return err
			}
			key, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("API key for %s: ", provider))
			if err != nil {
				return err
			}
			if err := a.secrets.SetProviderAPIKey(provider, key, fallback); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s key for %s\n", okLabel("stored"), slotName(fallback), provider)
			return nil
		},
	}
	clearKey := &cobra.Command{
		Use:   "clear-key",
		Short: "Remove a stored provider API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.secrets.ClearProviderAPIKey(provider, fallback); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s key for %s\n", okLabel("cleared"), slotName(fallback), provider)
			return nil
		},
	}
	for _, c := range []*cobra.Command{setKey, clearKey} {
		c.Flags().StringVar(&provider, "provider", "", "Provider id from the generation config")
		c.Flags().BoolVar(&fallback, "fallback", false, "Use the fallback key slot")
		_ = c.MarkFlagRequired("provider")
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show which providers have a stored key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(a.cfg.Generation.Providers))
			for _, p := range a.cfg.Generation.Providers {
				ids = append(ids, p.ID)
			}
			set, err := a.secrets.GetProviderAPIKeySet(ids)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range a.cfg.Generation.Providers {
				state := dimLabel("missing")
				switch {
				case set[p.ID]:
					state = okLabel("stored")
				case p.APIKeyEnv != "" && os.Getenv(p.APIKeyEnv) != "":
					state = okLabel("env " + p.APIKeyEnv)
				}
				fmt.Fprintf(w, "%-16s %s\n", p.ID, state)
			}
			return nil
		},
	}

	var owner string
	addToken := &cobra.Command{
		Use:   "add-token",
		Short: "Issue a bearer token bound to an owner",
		Long: `Issues a random bearer token for callers acting as --owner. Only the
token's hash is stored; the token is printed once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, err := requireOwner(owner)
			if err != nil {
				return err
			}
			a, err := loadApp(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			token, err := newToken()
			if err != nil {
				return err
			}
			if err := a.secrets.SetAuthToken(token, ownerID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	addToken.Flags().StringVar(&owner, "owner", "", "Owner (user) id the token acts as")

	revokeToken := &cobra.Command{
		Use:   "revoke-token",
		Short: "Revoke a bearer token (read from the terminal or stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			token, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Token: ")
			if err != nil {
				return err
			}
			if err := a.secrets.RevokeAuthToken(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okLabel("revoked"))
			return nil
		},
	}

	cmd.AddCommand(setKey, clearKey, status, addToken, revokeToken)
	return cmd
}

func requireProvider(a *app, id string) error {
	id = strings.TrimSpace(id)
	for _, p := range a.cfg.Generation.Providers {
		if p.ID == id {
			return nil
		}
	}
	return fmt.Errorf("unknown provider %q", id)
}

func slotName(fallback bool) string {
	if fallback {
		return "fallback"
	}
	return "primary"
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return nonEmptySecret(string(b))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return nonEmptySecret(line)
}

func nonEmptySecret(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty secret")
	}
	return s, nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "aat_" + base64.RawURLEncoding.EncodeToString(b), nil
}
