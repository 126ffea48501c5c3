package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/turngate/turngate/internal/hashline"
)

type readArgs struct {
	Paths  []string `json:"paths"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

type readFileResult struct {
	Lines string `json:"lines,omitempty"`
	Error string `json:"error,omitempty"`
}

var readParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"paths": {"type": "array", "items": {"type": "string"}, "description": "Absolute file paths to read."},
		"offset": {"type": "integer", "description": "1-based starting line number, optional."},
		"limit": {"type": "integer", "description": "Maximum number of lines to return, optional."}
	},
	"required": ["paths"]
}`)

// ReadTool reads one or more files and tags every returned line with a
// content hash the edit tool later uses as a change anchor.
type ReadTool struct{}

func NewReadTool() *ReadTool { return &ReadTool{} }

func (t *ReadTool) Definition() Definition {
	return Definition{
		Name:        "read",
		Description: "Read files, returning each line prefixed with its line number and content hash.",
		Parameters:  readParameters,
	}
}

func (t *ReadTool) Execute(ctx context.Context, rawArgs json.RawMessage) Result {
	var args readArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{Output: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
	}
	if len(args.Paths) == 0 {
		return Result{Output: "paths must not be empty", IsError: true}
	}

	files := make(map[string]readFileResult, len(args.Paths))
	anyOK := false
	for _, path := range args.Paths {
		lines, err := readOne(path, args.Offset, args.Limit)
		if err != nil {
			files[path] = readFileResult{Error: err.Error()}
			continue
		}
		files[path] = readFileResult{Lines: lines}
		anyOK = true
	}

	out, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return Result{Output: fmt.Sprintf("failed to encode result: %v", err), IsError: true}
	}
	return Result{Output: string(out), IsError: !anyOK}
}

func readOne(path string, offset, limit int) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	content := string(raw)
	lines := strings.Split(content, "\n")

	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	if start > end {
		start = end
	}

	slice := lines[start:end]
	tagged := make([]hashline.TaggedLine, len(slice))
	for i, line := range slice {
		tagged[i] = hashline.TaggedLine{
			Num:     start + 1 + i,
			Hash:    hashline.LineHash(line),
			Content: line,
		}
	}
	return hashline.FormatTagged(tagged), nil
}
