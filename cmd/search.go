/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"moviebot/pkg/config"
	"moviebot/pkg/dispatcher"
	"moviebot/pkg/logger"
	"moviebot/pkg/reply"
	"moviebot/pkg/tmdb"
	"moviebot/pkg/ui/console"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	queryText   string
	plainOutput bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [title]",
	Short: "Look up a movie or start an interactive search console",
	Long:  "Loads MovieBot configuration and runs the same lookup the bot runs for a chat message, printing the reply that would be sent.",
	Run: func(cmd *cobra.Command, args []string) {
		query := resolveQuery(args)

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		// The console owns the terminal, so logs only go to stderr in plain mode.
		appLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if plainOutput {
			appLogger, err = logger.New(cfg.Logging)
			if err != nil {
				fmt.Printf("failed to initialize logger: %v\n", err)
				return
			}
		}

		lookup, err := newLookupFunc(cfg, appLogger)
		if err != nil {
			fmt.Printf("failed to initialize lookup: %v\n", err)
			return
		}

		ctx := context.Background()
		switch {
		case plainOutput && query != "":
			printReply(os.Stdout, lookup(ctx, query).Reply)
		case plainOutput:
			runPlainInteractive(ctx, os.Stdin, os.Stdout, lookup)
		case query != "":
			if err := console.RunOneShot(ctx, lookup, query); err != nil {
				fmt.Printf("search console failed: %v\n", err)
			}
		default:
			if err := console.RunInteractive(ctx, lookup); err != nil {
				fmt.Printf("search console failed: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&queryText, "query", "q", "", "movie title to look up")
	searchCmd.Flags().BoolVar(&plainOutput, "plain", false, "print plain text instead of starting the console UI")
}

func newLookupFunc(cfg *config.Config, log *slog.Logger) (console.LookupFunc, error) {
	d, err := dispatcher.New(tmdb.NewClient(cfg.TMDB, log), reply.NewComposer(cfg.TMDB, cfg.Links), nil, log)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, query string) dispatcher.LookupResult {
		return d.Lookup(ctx, query, uuid.NewString())
	}, nil
}

// resolveQuery prefers --query over positional arguments.
func resolveQuery(args []string) string {
	if value := strings.TrimSpace(queryText); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func runPlainInteractive(ctx context.Context, in io.Reader, out io.Writer, lookup console.LookupFunc) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "🔎 ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Fprintf(out, "input error: %v\n", err)
			}
			return
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if console.IsExitCommand(query) {
			return
		}

		printReply(out, lookup(ctx, query).Reply)
	}
}

func printReply(out io.Writer, r reply.Reply) {
	if r.PhotoURL != "" {
		fmt.Fprintf(out, "🖼  %s\n", r.PhotoURL)
	}
	for _, line := range replyLines(r.Text) {
		fmt.Fprintln(out, line)
	}
	if r.Button != nil {
		fmt.Fprintf(out, "%s: %s\n", r.Button.Label, r.Button.URL)
	}
	fmt.Fprintln(out)
}

func replyLines(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}
