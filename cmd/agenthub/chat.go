package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agenthub"
	"github.com/hupe1980/agenthub/runner"
)

type chatFlags struct {
	agent   string
	model   string
	thread  string
	steps   int
	message string
	stream  bool
}

func newChatCmd(a *app) *cobra.Command {
	f := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent",
		Long: `Chat with an agent. With --message a single turn is run; otherwise an
interactive session reads one message per line from stdin. Type /exit to
leave and /thread to print the thread id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.hub()
			if err != nil {
				return err
			}
			defer h.Close()

			if f.thread == "" {
				f.thread = uuid.NewString()
			}
			p := newPrinter(cmd.OutOrStdout(), !a.noColor)

			if f.message != "" {
				return runTurn(cmd, h, p, f, f.message)
			}
			return repl(cmd, h, p, f)
		},
	}

	cmd.Flags().StringVarP(&f.agent, "agent", "a", "", "agent to talk to (default from config)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model id (default from config)")
	cmd.Flags().StringVarP(&f.thread, "thread", "t", "", "continue an existing thread")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "step budget per turn (default from config)")
	cmd.Flags().StringVar(&f.message, "message", "", "send one message and exit")
	cmd.Flags().BoolVar(&f.stream, "stream", true, "print tokens and tool calls while the turn runs")

	return cmd
}

func repl(cmd *cobra.Command, h *agenthub.Hub, p *printer, f *chatFlags) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, mutedStyle.Render("thread "+f.thread+" (/exit to quit)"))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/thread":
			fmt.Fprintln(out, f.thread)
			continue
		}

		if err := runTurn(cmd, h, p, f, line); err != nil {
			if cmd.Context().Err() != nil {
				return err
			}
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
		}
	}
}

func runTurn(cmd *cobra.Command, h *agenthub.Hub, p *printer, f *chatFlags, message string) error {
	req := runner.TurnRequest{
		ThreadID:   f.thread,
		AgentID:    f.agent,
		Model:      f.model,
		Message:    message,
		StepBudget: f.steps,
	}

	p.reset()
	onInstruction := p.Instruction
	if !f.stream {
		onInstruction = nil
	}

	runID, doc, err := h.Chat(cmd.Context(), req, onInstruction)
	if !f.stream && doc != nil {
		p.Document(doc)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("run "+runID))
	return nil
}

func newReplayCmd(a *app) *cobra.Command {
	var thread string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Render the stored history of a thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.hub()
			if err != nil {
				return err
			}
			defer h.Close()

			doc, err := h.Replay(cmd.Context(), thread, nil)
			if doc != nil {
				newPrinter(cmd.OutOrStdout(), !a.noColor).Document(doc)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&thread, "thread", "t", "", "thread id")
	_ = cmd.MarkFlagRequired("thread")

	return cmd
}
