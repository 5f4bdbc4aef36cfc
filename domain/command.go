package domain

import (
	"strings"
)

// CommandMarker starts every command line.
const CommandMarker = `\`

// Command is one of the parsed command variants.
// Exit | Time | Help | Users | Priv | Unknown
type Command interface {
	Keyword() string
}

type ExitCommand struct{}

type TimeCommand struct{}

type HelpCommand struct{}

type UsersCommand struct{}

// PrivCommand carries a private message for a single participant.
type PrivCommand struct {
	Target ClientName
	Body   string
}

// UnknownCommand covers unknown keywords and known keywords used with a wrong arity.
type UnknownCommand struct {
	Raw string
}

func (ExitCommand) Keyword() string    { return "exit" }
func (TimeCommand) Keyword() string    { return "time" }
func (HelpCommand) Keyword() string    { return "help" }
func (UsersCommand) Keyword() string   { return "users" }
func (PrivCommand) Keyword() string    { return "priv" }
func (UnknownCommand) Keyword() string { return "" }

// IsCommand reports whether a line has to be dispatched as a command.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, CommandMarker)
}

// ParseCommand tokenizes a command line on whitespace and selects the variant
// from the first token. Matching is case-sensitive and there is no quoting.
func ParseCommand(line string) Command {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], CommandMarker) {
		return UnknownCommand{Raw: line}
	}

	keyword := strings.TrimPrefix(tokens[0], CommandMarker)
	args := tokens[1:]

	switch keyword {
	case "exit":
		if len(args) == 0 {
			return ExitCommand{}
		}
	case "time":
		if len(args) == 0 {
			return TimeCommand{}
		}
	case "help":
		if len(args) == 0 {
			return HelpCommand{}
		}
	case "users":
		if len(args) == 0 {
			return UsersCommand{}
		}
	case "priv":
		if len(args) >= 2 {
			return PrivCommand{
				Target: ClientName(args[0]),
				Body:   strings.Join(args[1:], " "),
			}
		}
	}
	return UnknownCommand{Raw: line}
}
