package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/turngate/turngate/internal/hashline"
)

type editArgs struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Text string `json:"text"`
}

var editParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Absolute file path to edit."},
		"hash": {"type": "string", "description": "Hash reference from a prior read: \"line:hash\" or \"line:hash-line:hash\" for a range."},
		"text": {"type": "string", "description": "Replacement text for the referenced line(s)."}
	},
	"required": ["path", "hash", "text"]
}`)

// EditTool replaces a single line or an inclusive line range, located by a
// hash reference returned from the read tool. If the file changed since
// that read, the anchor won't be found and the edit fails rather than
// silently touching the wrong lines.
type EditTool struct{}

func NewEditTool() *EditTool { return &EditTool{} }

func (t *EditTool) Definition() Definition {
	return Definition{
		Name:        "edit",
		Description: "Replace a line or line range in a file, located by a hash reference from a prior read.",
		Parameters:  editParameters,
	}
}

func (t *EditTool) Execute(ctx context.Context, rawArgs json.RawMessage) Result {
	var args editArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{Output: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
	}
	if args.Path == "" || args.Hash == "" {
		return Result{Output: "path and hash must not be empty", IsError: true}
	}

	start, end, isRange, err := hashline.ParseRef(args.Hash)
	if err != nil {
		return Result{Output: err.Error(), IsError: true}
	}
	if !isRange {
		end = start
	}

	raw, err := os.ReadFile(args.Path)
	if err != nil {
		return Result{Output: fmt.Sprintf("could not read %s: %v", args.Path, err), IsError: true}
	}
	content := string(raw)
	trailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	body := lines
	if trailingNewline {
		body = lines[:len(lines)-1]
	}

	if err := hashline.ValidateRange(start, end, body); err != nil {
		return Result{Output: fmt.Sprintf("edit rejected, file has drifted since last read: %v", err), IsError: true}
	}

	startIdx, endIdx := start.Num-1, end.Num-1
	replacement := strings.Split(args.Text, "\n")

	newBody := make([]string, 0, len(body)-(endIdx-startIdx+1)+len(replacement))
	newBody = append(newBody, body[:startIdx]...)
	newBody = append(newBody, replacement...)
	newBody = append(newBody, body[endIdx+1:]...)

	newContent := strings.Join(newBody, "\n")
	if trailingNewline {
		newContent += "\n"
	}

	if err := os.WriteFile(args.Path, []byte(newContent), 0o644); err != nil {
		return Result{Output: fmt.Sprintf("could not write %s: %v", args.Path, err), IsError: true}
	}

	return Result{Output: fmt.Sprintf("replaced lines %d-%d in %s", start.Num, end.Num, args.Path)}
}
