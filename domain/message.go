// Package domain contains core concepts of the chat relay.
// This file defines the texts the relay sends to participants.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ProbeByte is the out-of-band liveness control byte. It is never newline-terminated.
const ProbeByte byte = 0x01

// ServerTimeLayout renders dd/mm/YYYY HH:MM:SS.
const ServerTimeLayout = "02/01/2006 15:04:05"

const (
	NamePrompt    = "Server: Please enter your name for joining the chat"
	NameRetry     = "Server: Send a new name:"
	JoinConfirmed = "Server: You have joined the chat"
)

const (
	EmptyNameText            = "Server: Error - Empty name is not allowed."
	InvalidNameSyntaxText    = "Server: Error - Invalid characters at name. Only letters, numbers, underscore and hyphen allowed."
	NameExistsText           = "Server: Error - Name already exists. Please give a new one."
	InvalidCommandSyntaxText = `Server: Error - The given command syntax is invalid. Please write \help for get info.`
)

const HelpText = `Async Chat Help:
- First give your name, it can consist only letters, numbers, underscore and hyphen.
- All messages are broadcasted to all users.
- You can send commands to the server, each command start with an \ character.

Commands:
\exit - Quits from the chat and disconnects from the server.
\time - Gives back the current server time
\help - Shows this help
\priv "name" "Message" - Sends a private message to the user with "name"
\users - Gives a list of the current users names`

// ChatLine is the broadcast form of a plain message.
func ChatLine(sender ClientName, text string) string {
	return fmt.Sprintf("%s: %s", sender, text)
}

// PrivateLine is what the target of a \priv command receives.
func PrivateLine(sender ClientName, body string) string {
	return fmt.Sprintf("Private message from \"%s\" : %s", sender, body)
}

func JoinNotice(name ClientName) string {
	return fmt.Sprintf("%s has joined the chat", name)
}

func UsersLine(names []ClientName) string {
	parts := lo.Map(names, func(n ClientName, _ int) string { return string(n) })
	return "Server: List of active users: " + strings.Join(parts, ", ")
}

func TimeLine(now time.Time) string {
	return "Server Time: " + now.Format(ServerTimeLayout)
}
