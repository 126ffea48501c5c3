package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/turngate/turngate/internal/shell"
)

const (
	bashTimeout      = 120 * time.Second
	bashMaxOutput    = 30_000
	bashTruncateMark = "\n... [output truncated]\n"
)

type bashArgs struct {
	Command string `json:"command"`
}

var bashParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "The bash command to run."}
	},
	"required": ["command"]
}`)

// BashTool runs a literal "bash -c <command>" subprocess, merging stdout and
// stderr, subject to a fixed timeout and a pre-exec safety screen.
type BashTool struct {
	blockers []shell.BlockFunc
}

func NewBashTool() *BashTool {
	return &BashTool{blockers: shell.DefaultBlockFuncs()}
}

func (t *BashTool) Definition() Definition {
	return Definition{
		Name:        "bash",
		Description: "Run a shell command and return its merged stdout and stderr.",
		Parameters:  bashParameters,
	}
}

func (t *BashTool) Execute(ctx context.Context, rawArgs json.RawMessage) Result {
	var args bashArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{Output: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
	}
	if strings.TrimSpace(args.Command) == "" {
		return Result{Output: "command must not be empty", IsError: true}
	}

	if blocked, reason := t.screen(args.Command); blocked {
		return Result{Output: reason, IsError: true}
	}

	runCtx, cancel := context.WithTimeout(ctx, bashTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", args.Command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	output := truncate(out.String(), bashMaxOutput)

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{Output: output + fmt.Sprintf("\ncommand timed out after %s and was killed", bashTimeout), IsError: true}
	}
	if runCtx.Err() != nil {
		return Result{Output: output + "\ncommand canceled", IsError: true}
	}

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{Output: fmt.Sprintf("Exit code: %d\n%s", exitCode, output), IsError: true}
	}

	return Result{Output: output, IsError: false}
}

// screen parses command into argv without executing it, and rejects it if
// any block rule matches. Parse failures (unbalanced quotes, etc.) are
// passed through to the real shell rather than rejected here — mvdan.cc/sh
// is stricter than bash about some constructs, and a command that real bash
// accepts but our parser can't handle should not be screened out.
func (t *BashTool) screen(command string) (blocked bool, reason string) {
	argv, ok := extractArgv(command)
	if !ok {
		return false, ""
	}
	for _, bf := range t.blockers {
		if bf(argv) {
			return true, fmt.Sprintf("command blocked by safety policy: %s", command)
		}
	}
	return false, ""
}

// extractArgv walks the first simple command of the parsed script and
// returns its literal words. Only the unquoted literal parts of each word
// are kept; quoted parts, substitutions and variables are dropped, which is
// enough for the block rules' prefix/flag matching on plain commands without
// needing full shell semantics.
func extractArgv(command string) (argv []string, ok bool) {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, false
	}
	var words []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if words != nil {
			return false
		}
		call, isCall := node.(*syntax.CallExpr)
		if !isCall {
			return true
		}
		for _, w := range call.Args {
			words = append(words, wordLiteral(w))
		}
		return false
	})
	if words == nil {
		return nil, false
	}
	return words, true
}

func wordLiteral(w *syntax.Word) string {
	var b strings.Builder
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			b.WriteString(lit.Value)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + bashTruncateMark
}
