// Command chatwidget hosts the widget core in a terminal: it plays the role
// of the rendering layer, wiring stdin/stdout to the same notification
// interface a browser embed would implement.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatwidget/internal/usecase"
	"chatwidget/widget"
)

var (
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	botHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	typingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	suggestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

// termRenderer implements the widget's renderer interface on a terminal.
type termRenderer struct {
	agentName string
}

func (t *termRenderer) ShowTyping() {
	fmt.Println(typingStyle.Render("· · ·"))
}

func (t *termRenderer) HideTyping() {}

func (t *termRenderer) RenderBotMessage(text string, opts usecase.BotMessageOpts) {
	if opts.IsFirstInSequence {
		fmt.Println(botHeaderStyle.Render(t.agentName))
	}
	fmt.Println(botStyle.Render(text))
}

func (t *termRenderer) RenderUserMessage(text string) {
	fmt.Println(userStyle.Render("you: " + text))
}

func (t *termRenderer) RenderSuggested(replies []string) {
	fmt.Println(suggestStyle.Render("suggestions: " + strings.Join(replies, " | ")))
}

func (t *termRenderer) RenderFormError(field usecase.Field, message string) {
	fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %s", field, message)))
}

func (t *termRenderer) RenderSuccess(name string) {
	fmt.Println(successStyle.Render(fmt.Sprintf("Thanks %s, you're all set!", name)))
}

func (t *termRenderer) RenderSubmissionError(message string) {
	fmt.Println(errorStyle.Render(message))
}

func (t *termRenderer) ClearSubmissionError() {}

func (t *termRenderer) ShowLeadForm() {
	fmt.Println(suggestStyle.Render("Fill these details first (name, then mobile)."))
}

func newRootCmd() *cobra.Command {
	var (
		webhookURL string
		agentName  string
		noCache    bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "chatwidget",
		Short: "Run the chat widget against a webhook from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if debug {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()

			cfg := widget.DefaultConfig(webhookURL)
			if agentName != "" {
				cfg.AgentName = agentName
			}
			cfg.CacheEnabled = !noCache

			renderer := &termRenderer{agentName: cfg.AgentName}
			w, err := widget.New(cfg, renderer, widget.WithLogger(logger))
			if err != nil {
				return err
			}

			return runSession(cmd.Context(), w, renderer)
		},
	}

	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "webhook endpoint (required)")
	cmd.Flags().StringVar(&agentName, "agent-name", "", "agent display name")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("webhook-url")
	return cmd
}

func runSession(ctx context.Context, w *widget.Widget, renderer *termRenderer) error {
	scanner := bufio.NewScanner(os.Stdin)

	w.Open()
	// Give the staggered welcome messages time to land before prompting.
	time.Sleep(2 * time.Second)

	name := prompt(scanner, "name> ")
	mobile := w.FilterMobileInput(prompt(scanner, "mobile> "))
	w.UserSubmittedLeadForm(ctx, name, mobile)

	fmt.Println(suggestStyle.Render("suggestions: " + strings.Join(w.SuggestedMessages(), " | ")))
	for {
		line := prompt(scanner, "> ")
		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			snap := w.Metrics()
			fmt.Printf("sent=%d avg=%s cache_hits=%d hit_rate=%s\n",
				snap.MessagesSent, snap.AverageResponseTime, snap.CacheHits, snap.CacheHitRate)
			return nil
		case "/metrics":
			snap := w.Metrics()
			fmt.Printf("sent=%d avg=%s cache_hits=%d cache_size=%d hit_rate=%s\n",
				snap.MessagesSent, snap.AverageResponseTime, snap.CacheHits, snap.CacheSize, snap.CacheHitRate)
		case "/clear-cache":
			w.ClearCache()
		default:
			w.UserSubmittedMessage(ctx, line)
			// Let the paced response print before the next prompt.
			time.Sleep(2 * time.Second)
		}
	}
}

func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !scanner.Scan() {
		os.Exit(0)
	}
	return scanner.Text()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
