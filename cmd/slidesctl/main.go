// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main implements slidesctl, the command-line interface of the
// slides translator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fmind/slides-translator-agent/orchestrator"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slidesctl",
		Short: "Translate Google Slides presentations with Gemini",
		Long: `slidesctl copies a Google Slides presentation and translates every text
run of the copy with a Gemini model on Vertex AI.

Configuration is read from a .env file in the working directory and from the
environment (see "slidesctl config").`,
		Version:       orchestrator.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(chatCmd())
	cmd.AddCommand(translateCmd())
	cmd.AddCommand(pricingCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}
