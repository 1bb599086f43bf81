// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fmind/slides-translator-agent/auth"
	"github.com/fmind/slides-translator-agent/common/usage"
	"github.com/fmind/slides-translator-agent/config"
	"github.com/fmind/slides-translator-agent/orchestrator"
	"github.com/fmind/slides-translator-agent/orchestrator/agent"
	"github.com/fmind/slides-translator-agent/orchestrator/translator"
)

func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return orchestrator.AnonymousUser
}

// serveCmd runs the HTTP service.
func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service with the agent web API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return orchestrator.Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides PORT)")
	return cmd
}

// buildComponents loads the configuration and wires every component.
func buildComponents(ctx context.Context) (*orchestrator.Components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return orchestrator.Build(ctx, cfg, orchestrator.NewLogger(cfg))
}

// chatCmd runs an interactive agent session on the terminal.
func chatCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk with the translator agent in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			session := c.Sessions.Create(user)
			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s Type 'exit' to quit.\n", agent.Name, agent.Description)

			for {
				fmt.Fprint(out, "\n[user]: ")
				if !in.Scan() {
					return in.Err()
				}
				line := strings.TrimSpace(in.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}

				turn, err := c.Agent.Run(ctx, session, line)
				for err == nil && turn.AuthRequired {
					code, ok := promptAuthCode(in, out, turn.AuthURL)
					if !ok {
						return in.Err()
					}
					turn, err = c.Agent.Resume(ctx, session, code)
				}
				if err != nil {
					fmt.Fprintf(out, "[error]: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "[%s]: %s\n", "agent", turn.Text)
			}
		},
	}

	cmd.Flags().StringVar(&user, "user", localUser(), "user id owning the cached credentials")
	return cmd
}

// promptAuthCode prints the consent URL and reads the code the user pastes.
func promptAuthCode(in *bufio.Scanner, out io.Writer, authURL string) (string, bool) {
	fmt.Fprintf(out, "\nOpen this URL to authorize access to your presentations:\n\n  %s\n\n", authURL)
	fmt.Fprint(out, "Paste the authorization code or the redirected URL: ")
	if !in.Scan() {
		return "", false
	}
	return extractCode(in.Text()), true
}

// extractCode returns the code query parameter of a redirect URL, or the
// trimmed input when it is not a URL.
func extractCode(input string) string {
	input = strings.TrimSpace(input)
	if u, err := url.Parse(input); err == nil && u.Scheme != "" {
		if code := u.Query().Get("code"); code != "" {
			return code
		}
	}
	return input
}

// translateCmd translates one presentation without the agent.
func translateCmd() *cobra.Command {
	var (
		presentation string
		language     string
		extra        string
		user         string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a presentation directly",
		Long: `Copy a presentation and translate the copy.

Examples:
  slidesctl translate --presentation https://docs.google.com/presentation/d/<id>/edit --language French
  slidesctl translate --presentation <id> --language German --context "technical audience" --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output format: %s", output)
			}
			req := translator.Request{
				PresentationID: presentation,
				TargetLanguage: language,
				SlidesContext:  extra,
			}
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			tc := translator.ToolContext{UserID: user}
			for {
				resp, err := c.Tool.TranslatePresentation(ctx, tc, req)
				if err != nil {
					return err
				}
				if !resp.Pending {
					return printReport(out, resp.Report, output)
				}
				code, ok := promptAuthCode(in, out, resp.AuthURL)
				if !ok {
					return errors.New("authorization aborted")
				}
				req.AuthCode = code
			}
		},
	}

	cmd.Flags().StringVarP(&presentation, "presentation", "p", "", "presentation id or URL (required)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "target language, e.g. French (required)")
	cmd.Flags().StringVarP(&extra, "context", "c", "", "context to guide the translation model")
	cmd.Flags().StringVar(&user, "user", localUser(), "user id owning the cached credentials")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("presentation")
	_ = cmd.MarkFlagRequired("language")
	return cmd
}

func printReport(out io.Writer, report *translator.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Presentation:\t%s\n", report.NewPresentationURL)
	fmt.Fprintf(w, "Title:\t%s\n", report.NewPresentationTitle)
	fmt.Fprintf(w, "Slides:\t%d\n", report.SlidesCount)
	fmt.Fprintf(w, "Unique text runs:\t%d\n", report.UniqueTextRunsFound)
	fmt.Fprintf(w, "Text runs translated:\t%d\n", report.TextRunsTranslated)
	fmt.Fprintf(w, "Occurrences changed:\t%d\n", report.TextOccurrencesChanged)
	fmt.Fprintf(w, "Estimated words:\t%d\n", report.EstimatedWordsTranslated)
	fmt.Fprintf(w, "Tokens (in/out):\t%d / %d\n", report.TotalInputTokens, report.TotalOutputTokens)
	fmt.Fprintf(w, "Cost:\t%s\n", usage.FormatUSD(report.TotalCostUSD))
	return w.Flush()
}

// pricingCmd prints the model price table.
func pricingCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Show the model price table (USD per 1M tokens)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = os.Getenv(config.KeyPricingFile)
			}
			table, err := usage.LoadPricingFile(file)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tINPUT\tOUTPUT")
			for _, name := range table.Names() {
				p, _ := table.Get(name)
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", name, p.InputPerMillion, p.OutputPerMillion)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML price overrides (default: PRICING_FILE)")
	return cmd
}

// configCmd prints the effective configuration with secrets redacted.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			values := cfg.RedactedMap()
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			doc := &yaml.Node{Kind: yaml.MappingNode}
			for _, k := range keys {
				var value yaml.Node
				if err := value.Encode(values[k]); err != nil {
					return err
				}
				doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &value)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// tokenCmd issues a bearer token for the HTTP API.
func tokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		Long: `Issue a bearer token signed with API_TOKEN_KEY. The service resolves the
caller from this token instead of the X-User-ID header.

Examples:
  slidesctl token --user alice@example.com --ttl 12h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.APITokenKey == "" {
				return fmt.Errorf("%s is not set", config.KeyAPITokenKey)
			}
			tokens, err := auth.NewUserTokens(cfg.APITokenKey)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id named by the token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultUserTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slidesctl %s\n", orchestrator.Version)
		},
	}
}
