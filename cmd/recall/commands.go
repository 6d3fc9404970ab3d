package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lexlapax/recall/pkg/assistant"
	"github.com/lexlapax/recall/pkg/config"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/mmu"
	"gopkg.in/yaml.v3"
)

// Commands
const (
	cmdCategories = "categories"
	cmdList       = "list"
	cmdHistory    = "history"
	cmdClear      = "clear"
	cmdDelete     = "delete"
	cmdExit       = "exit"
	cmdHelp       = "!help"
	cmdSearch     = "!search"
	cmdRemember   = "!remember"
	cmdConfig     = "!config"
)

// commandNames feeds tab completion.
var commandNames = []string{
	cmdCategories, cmdList, cmdHistory, cmdClear, cmdDelete + " all", cmdDelete, cmdExit,
	cmdHelp, cmdSearch, cmdRemember, cmdConfig,
}

const helpText = `Commands:
  categories                        Show how many memories each category holds
  list [category]                   List memories, optionally only one category
  history                           Show the recent conversation
  clear                             Clear the conversation history
  delete <id>                       Delete one memory
  delete all                        Delete every memory
  exit                              Quit
  !search <query>                   Rank memories against a query
  !remember <key>: <value> [#cat]   Store a fact directly
  !config                           Show the effective configuration
  !help                             Show this help

Anything else is a question for the assistant.`

const prompt = "recall> "

// searchLimit bounds !search output.
const searchLimit = 10

// shell runs commands against an assistant and writes results to out.
type shell struct {
	assistant *assistant.Assistant
	cfg       *config.Config
	out       io.Writer
}

func newShell(a *assistant.Assistant, cfg *config.Config, out io.Writer) *shell {
	return &shell{assistant: a, cfg: cfg, out: out}
}

func (s *shell) banner() {
	fmt.Fprintln(s.out, titleStyle.Render("recall")+dimStyle.Render(fmt.Sprintf(
		" %d memories, storage: %s, reasoning: %s",
		len(s.assistant.Memories("")), s.cfg.Storage.Backend, s.cfg.Reasoning.Provider,
	)))
	fmt.Fprintln(s.out, dimStyle.Render("Type !help for available commands."))
}

// loop reads and runs commands until exit or end of input. Errors from
// individual commands are printed and never end the loop.
func (s *shell) loop(ctx context.Context, in lineReader) error {
	for {
		input, err := in.ReadLine(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, errAborted) {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Comment lines let scripted sessions annotate themselves
		if !in.Interactive() && (strings.HasPrefix(input, "#") || strings.HasPrefix(input, "//")) {
			continue
		}
		in.Remember(input)

		if !s.handle(ctx, input) {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
	}
}

// handle runs one command and reports whether the shell should continue.
func (s *shell) handle(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch {
	case cmd == cmdExit && len(fields) == 1:
		return false

	case cmd == cmdCategories && len(fields) == 1:
		renderCategories(s.out, s.assistant.Categories())

	case cmd == cmdList && len(fields) <= 2:
		category := ""
		if len(fields) == 2 {
			category = fields[1]
		}
		renderRecords(s.out, s.assistant.Memories(category), category)

	case cmd == cmdHistory && len(fields) == 1:
		renderHistory(s.out, s.assistant.Conversation())

	case cmd == cmdClear && len(fields) == 1:
		if err := s.assistant.ClearConversation(ctx); err != nil {
			renderError(s.out, err)
			break
		}
		renderSuccess(s.out, "Conversation history cleared.")

	case cmd == cmdDelete && len(fields) == 2:
		s.delete(ctx, fields[1])

	case cmd == cmdHelp:
		fmt.Fprintln(s.out, helpText)

	case cmd == cmdSearch:
		s.search(ctx, rest)

	case cmd == cmdRemember:
		s.remember(ctx, rest)

	case cmd == cmdConfig:
		s.showConfig()

	case strings.HasPrefix(cmd, "!"):
		fmt.Fprintf(s.out, "Unknown command: %s\nType !help for available commands.\n", fields[0])

	default:
		s.ask(ctx, input)
	}
	return true
}

func (s *shell) delete(ctx context.Context, arg string) {
	if strings.EqualFold(arg, "all") {
		if err := s.assistant.ForgetAll(ctx); err != nil {
			renderError(s.out, err)
			return
		}
		renderSuccess(s.out, "All memories deleted.")
		return
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		renderError(s.out, fmt.Errorf("invalid memory id %q", arg))
		return
	}

	removed, ok, err := s.assistant.Forget(ctx, id)
	if err != nil {
		renderError(s.out, err)
		return
	}
	if !ok {
		fmt.Fprintln(s.out, dimStyle.Render(fmt.Sprintf("No memory with id %d.", id)))
		return
	}
	renderSuccess(s.out, "Deleted: "+removed.Text)
}

func (s *shell) search(ctx context.Context, query string) {
	if query == "" {
		fmt.Fprintln(s.out, "Usage: !search <query>")
		return
	}

	results, err := s.assistant.Search(ctx, query, searchLimit)
	if err != nil {
		renderError(s.out, err)
		return
	}
	renderScored(s.out, results)
}

func (s *shell) remember(ctx context.Context, arg string) {
	fact, ok := parseFact(arg)
	if !ok {
		fmt.Fprintln(s.out, "Usage: !remember <key>: <value> [#category]")
		return
	}

	result, err := s.assistant.Remember(ctx, fact)
	switch {
	case errors.Is(err, mmu.ErrFiltered):
		fmt.Fprintln(s.out, dimStyle.Render("Not stored: filtered by a script hook."))
	case err != nil:
		renderError(s.out, err)
	case result.Skipped:
		fmt.Fprintln(s.out, dimStyle.Render(fmt.Sprintf("Already known as #%d.", result.Duplicate.ID)))
	default:
		renderSuccess(s.out, fmt.Sprintf("Remembered #%d: %s", result.Record.ID, result.Record.Text))
	}
}

func (s *shell) ask(ctx context.Context, query string) {
	answer, err := s.assistant.Ask(ctx, query)
	if answer.Reply != "" || err == nil {
		renderReply(s.out, answer.Reply)
	}
	if err != nil {
		log.ErrorContext(ctx, "Query failed", "error", err)
		renderError(s.out, err)
		return
	}
	renderExtraction(s.out, answer.Extraction)
}

// showConfig prints the effective configuration with secrets masked.
func (s *shell) showConfig() {
	shown := *s.cfg
	shown.Reasoning.OpenAI.APIKey = log.Redact(shown.Reasoning.OpenAI.APIKey)
	shown.Reasoning.Anthropic.APIKey = log.Redact(shown.Reasoning.Anthropic.APIKey)

	data, err := yaml.Marshal(&shown)
	if err != nil {
		renderError(s.out, err)
		return
	}
	fmt.Fprint(s.out, string(data))
}

// parseFact reads "key: value" with an optional trailing "#category".
func parseFact(arg string) (ltm.Fact, bool) {
	key, value, found := strings.Cut(arg, ":")
	if !found {
		return ltm.Fact{}, false
	}

	var category string
	value = strings.TrimSpace(value)
	if i := strings.LastIndex(value, " #"); i >= 0 {
		candidate := strings.TrimSpace(value[i+2:])
		if candidate != "" && !strings.ContainsAny(candidate, " \t") {
			category = candidate
			value = value[:i]
		}
	}

	fact := ltm.Fact{Key: key, Value: value, Category: category}.Normalize()
	if fact.Key == "" || fact.Value == "" {
		return ltm.Fact{}, false
	}
	return fact, true
}
