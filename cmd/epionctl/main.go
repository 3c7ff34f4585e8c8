// Package main implements epionctl, a command-line tool for parsing citation
// markers locally and fetching annotations from the Epion gateway.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/epion-news/epion/internal/citations"
	"github.com/epion-news/epion/internal/formatting"
	"github.com/epion-news/epion/internal/sources"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "epionctl",
		Short: "Citation marker tooling for Epion",
		Long: `epionctl splits AI-written text on its [n] citation markers.

segment and render run locally; annotate asks a running gateway for a stored
article summary or chat message with its sources resolved.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newSegmentCmd(), newRenderCmd(), newReportCmd(), newAnnotateCmd())
	return root
}

func newSegmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segment [file|-]",
		Short: "Split text into citation segments",
		Long: `Split text into segments, each ending at a cluster of citation markers.

Examples:
  # From a file
  epionctl segment summary.txt

  # From stdin
  echo 'Rates rose[1][2].' | epionctl segment -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"segments": citations.Segment(text),
			})
		},
	}
}

func newRenderCmd() *cobra.Command {
	var highlight bool
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Tokenize text for inline display",
		Long: `Tokenize text into plain runs and one reference per citation marker.

Examples:
  # Static references labeled with their literal
  epionctl render summary.txt

  # Interactive references labeled with the source number
  epionctl render --highlight summary.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"tokens": citations.RenderInline(text, highlight, nil),
			})
		},
	}
	cmd.Flags().BoolVar(&highlight, "highlight", false, "render interactive references")
	return cmd
}

func newAnnotateCmd() *cobra.Command {
	var (
		serverURL string
		articleID string
		messageID string
		format    string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Fetch an annotated article summary or chat message",
		Long: `Fetch a stored article summary or chat message from the gateway with its
citations resolved against the saved sources.

Examples:
  epionctl annotate --article 7f3c
  epionctl annotate --message 91ab --server http://localhost:8080
  epionctl annotate --article 7f3c --format markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "markdown" {
				return fmt.Errorf("unknown format %q (want json or markdown)", format)
			}
			var path string
			switch {
			case articleID != "":
				path = "/api/v1/articles/" + url.PathEscape(articleID) + "/summary/annotated"
			case messageID != "":
				path = "/api/v1/chat/messages/" + url.PathEscape(messageID) + "/annotated"
			}
			return fetchAnnotation(cmd, serverURL+path, format, timeout)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "gateway URL")
	cmd.Flags().StringVar(&articleID, "article", "", "article ID")
	cmd.Flags().StringVar(&messageID, "message", "", "chat message ID")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or markdown")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	cmd.MarkFlagsMutuallyExclusive("article", "message")
	cmd.MarkFlagsOneRequired("article", "message")
	return cmd
}

func fetchAnnotation(cmd *cobra.Command, target, format string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if format == "json" {
		return printJSON(cmd.OutOrStdout(), body)
	}

	var ann struct {
		Segments []citations.TextSegment `json:"segments"`
		Sources  []sources.Source        `json:"sources"`
	}
	if err := json.Unmarshal(body, &ann); err != nil {
		return fmt.Errorf("failed to decode annotation: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), formatting.MarkdownWithSources(citations.Reassemble(ann.Segments), ann.Sources))
	return err
}

func newReportCmd() *cobra.Command {
	var sourcesPath string
	cmd := &cobra.Command{
		Use:   "report [file|-]",
		Short: "Render text with a Markdown Sources section",
		Long: `Append a Sources section to text, marking which sources are cited inline.
The sources file is a JSON array of {"url", "title", "published_at"} objects
in citation order.

Examples:
  epionctl report --sources sources.json summary.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var list []sources.Source
			if sourcesPath != "" {
				data, err := os.ReadFile(sourcesPath)
				if err != nil {
					return fmt.Errorf("failed to read sources %s: %w", sourcesPath, err)
				}
				if err := json.Unmarshal(data, &list); err != nil {
					return fmt.Errorf("failed to parse sources %s: %w", sourcesPath, err)
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatting.MarkdownWithSources(text, sources.Prepare(list, nil)))
			return err
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "JSON file with the numbered source list")
	return cmd
}

// readInput reads the named file, or stdin when the argument is missing or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return string(content), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
