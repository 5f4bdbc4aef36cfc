package main

import (
	"bufio"
	"chat-relay/domain"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gookit/color"
)

const exitLine = domain.CommandMarker + "exit"

var (
	serverStyle  = color.New(color.FgGreen, color.OpBold)
	privateStyle = color.New(color.FgMagenta)
)

// Terminal bridges a user's terminal and a relay connection.
// Probe bytes are answered as soon as they arrive, even while the user is typing.
type Terminal struct {
	conn    net.Conn
	out     io.Writer
	colours bool
	writeMu sync.Mutex
}

func NewTerminal(conn net.Conn, out io.Writer, colours bool) *Terminal {
	return &Terminal{conn: conn, out: out, colours: colours}
}

// Run returns nil when the server ends the conversation, the user sends \exit
// or input runs out.
func (t *Terminal) Run(ctx context.Context, in io.Reader) error {
	stop := context.AfterFunc(ctx, func() { _ = t.conn.Close() })
	defer stop()

	received := make(chan error, 1)
	go func() { received <- t.receive() }()

	sent := make(chan error, 1)
	go func() { sent <- t.send(in) }()

	select {
	case err := <-received:
		return ignoreClosed(ctx, err)
	case err := <-sent:
		if err != nil {
			return ignoreClosed(ctx, err)
		}
		// After \exit or end of input, print what the server still sends.
		return ignoreClosed(ctx, <-received)
	}
}

func (t *Terminal) receive() error {
	reader := bufio.NewReader(t.conn)
	var line strings.Builder
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case domain.ProbeByte:
			if err := t.write([]byte{domain.ProbeByte}); err != nil {
				return err
			}
		case '\n':
			t.print(strings.TrimSuffix(line.String(), "\r"))
			line.Reset()
		default:
			line.WriteByte(b)
		}
	}
}

// send forwards every input line. It stops after \exit; at end of input it asks the server to let go.
func (t *Terminal) send(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := scanner.Text()
		if err := t.write([]byte(text + "\n")); err != nil {
			return err
		}
		if strings.TrimSpace(text) == exitLine {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return t.write([]byte(exitLine + "\n"))
}

func (t *Terminal) write(b []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(b)
	return err
}

func (t *Terminal) print(line string) {
	if t.colours {
		switch {
		case strings.HasPrefix(line, "Server"):
			line = serverStyle.Render(line)
		case strings.HasPrefix(line, "Private message from"):
			line = privateStyle.Render(line)
		}
	}
	_, _ = io.WriteString(t.out, line+"\n")
}

func ignoreClosed(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}
