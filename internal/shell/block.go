// Package shell provides a pre-exec safety screen for the bash tool: it
// checks an already-parsed argv (the bash tool does the parsing, without
// executing anything) against a small set of block rules before the
// literal command is handed to a real bash -c subprocess.
package shell

import "strings"

// BlockFunc returns true if the given command args should be blocked.
type BlockFunc func(args []string) bool

// CommandsBlocker returns a BlockFunc that blocks exact command name matches.
func CommandsBlocker(cmds []string) BlockFunc {
	blocked := make(map[string]struct{}, len(cmds))
	for _, c := range cmds {
		blocked[c] = struct{}{}
	}
	return func(args []string) bool {
		if len(args) == 0 {
			return false
		}
		_, ok := blocked[args[0]]
		return ok
	}
}

// ArgumentsBlocker returns a BlockFunc that blocks a command when specific
// subcommand args and/or flags are present.
//
// For example, ArgumentsBlocker("rm", []string{"/"}, []string{"-rf"})
// blocks "rm -rf /" without blocking "rm -rf ./build".
func ArgumentsBlocker(cmd string, subArgs, flags []string) BlockFunc {
	return func(args []string) bool {
		if len(args) == 0 || args[0] != cmd {
			return false
		}
		posArgs, posFlags := splitArgsFlags(args[1:])
		if !prefixMatch(posArgs, subArgs) {
			return false
		}
		if len(flags) > 0 && !flagsPresent(posFlags, flags) {
			return false
		}
		return true
	}
}

// splitArgsFlags separates positional arguments from flags (anything
// starting with '-').
func splitArgsFlags(args []string) (positional, flags []string) {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
		} else {
			positional = append(positional, a)
		}
	}
	return
}

// prefixMatch returns true if haystack starts with all elements of needle.
func prefixMatch(haystack, needle []string) bool {
	if len(haystack) < len(needle) {
		return false
	}
	for i, n := range needle {
		if haystack[i] != n {
			return false
		}
	}
	return true
}

// flagsPresent returns true if all required flags appear in the actual flags.
func flagsPresent(actual, required []string) bool {
	have := make(map[string]struct{}, len(actual))
	for _, f := range actual {
		have[f] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// BannedCommands blocks only privilege escalation and whole-system mutation
// — a real bash subprocess needs curl/ssh/python/etc. to stay usable, unlike
// an in-process interpreter standing in for a full shell.
var BannedCommands = []string{
	"sudo", "su", "doas",
	"mkfs", "fdisk", "parted",
	"shutdown", "reboot", "poweroff", "halt",
	"systemctl", "service",
}

// rootTargets are positional arguments recognized as the filesystem root or
// the home directory when deciding whether an rm invocation is catastrophic
// rather than routine.
var rootTargets = []string{"/", "/*", "~", "~/"}

// DefaultBlockFuncs returns the standard set of block functions: privilege
// escalation, system mutation commands, and rm -rf against the filesystem
// root or the home directory.
func DefaultBlockFuncs() []BlockFunc {
	funcs := []BlockFunc{
		CommandsBlocker(BannedCommands),
	}
	for _, target := range rootTargets {
		funcs = append(funcs,
			ArgumentsBlocker("rm", []string{target}, []string{"-rf"}),
			ArgumentsBlocker("rm", []string{target}, []string{"-fr"}),
			ArgumentsBlocker("rm", []string{target}, []string{"-r", "-f"}),
		)
	}
	return funcs
}
