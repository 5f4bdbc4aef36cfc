package session

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSession_GreetsWithHelpAndPrompt(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)

	conn, err := net.Dial("tcp", h.listener.Addr().String())
	req.NoError(err)
	defer conn.Close()
	p := &peer{t: t, conn: conn, reader: bufio.NewReader(conn)}

	// Then the whole help block comes first, then the name prompt
	for _, line := range strings.Split(domain.HelpText, "\n") {
		p.expect(line)
	}
	p.expect(domain.NamePrompt)
	req.Equal([]event.Type{event.ConnectedType}, h.sink.Types())
	req.Zero(h.registry.Len())
}

func TestSession_BroadcastIsNotEchoed(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)
	carol := h.join("carol", alice, bob)

	// When alice talks
	alice.send("hello all")

	// Then everybody else receives it verbatim with her prefix
	bob.expect("alice: hello all")
	carol.expect("alice: hello all")

	// And alice's next line is bob's answer, not her own echo
	bob.send("hi alice")
	alice.expect("bob: hi alice")
	carol.expect("bob: hi alice")
}

func TestSession_SenderOrderIsKept(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	for _, line := range []string{"one", "two", "three"} {
		alice.send(line)
	}
	bob.expect("alice: one")
	bob.expect("alice: two")
	bob.expect("alice: three")
}

func TestSession_PrivateMessage(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)
	carol := h.join("carol", alice, bob)

	// When alice whispers to bob
	alice.send(`\priv bob hello there`)

	// Then only bob receives it
	bob.expect(`Private message from "alice" : hello there`)

	// And neither alice nor carol got anything in between
	bob.send("ping")
	alice.expect("bob: ping")
	carol.expect("bob: ping")
	require.Equal(t, uint64(1), h.counters.GetLatest().PrivateMessages)
}

func TestSession_PrivateMessageToUnknownIsDropped(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	// When alice whispers to nobody
	alice.send(`\priv ghost are you there`)

	// Then alice gets no error and bob gets nothing
	alice.send(`\users`)
	alice.expect("Server: List of active users: alice, bob")
	alice.send("still here")
	bob.expect("alice: still here")
	require.Equal(t, uint64(1), h.counters.GetLatest().DroppedPrivate)
}

func TestSession_Users(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	bob.send(`\users`)
	bob.expect("Server: List of active users: alice, bob")
	alice.send(`\users`)
	alice.expect("Server: List of active users: alice, bob")
}

func TestSession_ExitRemovesMember(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	// When bob leaves
	bob.send(`\exit`)

	// Then his stream is closed and his name is released
	bob.expectClosed()
	req.Eventually(func() bool {
		_, ok := h.registry.Lookup("bob")
		return !ok
	}, ioTimeout, 10*time.Millisecond)

	alice.send(`\users`)
	alice.expect("Server: List of active users: alice")

	req.Eventually(func() bool {
		e, ok := h.sink.Last(event.DisconnectedType)
		return ok && e.Name == "bob" && e.Reason == "exit"
	}, ioTimeout, 10*time.Millisecond)
}

func TestSession_ExitDuringRegistration(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	p := h.dial()

	p.send(`\exit`)
	p.expectClosed()
	req.Zero(h.registry.Len())
}

func TestSession_InvalidNamesAreRetried(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	p := h.dial()

	// When the peer sends an empty name
	p.send("")
	p.expect(domain.EmptyNameText)
	p.expect(domain.NameRetry)

	// And a name with forbidden characters
	p.send("al!ce")
	p.expect(domain.InvalidNameSyntaxText)
	p.expect(domain.NameRetry)

	// Then a valid name is still accepted, cut at the first space
	p.send("alice in chains")
	p.expect(domain.JoinConfirmed)
	req.Equal(domain.ClientName("alice"), h.session("alice").Name())

	rejected := 0
	for _, tp := range h.sink.Types() {
		if tp == event.RejectedType {
			rejected++
		}
	}
	req.Equal(2, rejected)
}

func TestSession_NameTruncated(t *testing.T) {
	req := require.New(t)
	settings := relaxed
	settings.ClientNameLen = 4
	h := newHarness(t, settings)

	p := h.dial()
	p.send("abcdefgh")
	p.expect(domain.JoinConfirmed)
	req.Equal(domain.ClientName("abcd"), h.session("abcd").Name())
}

func TestSession_NameExists(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	alice := h.join("alice")

	// When a second peer asks for the same name
	p := h.dial()
	p.send("alice")

	// Then it is told so and can try again
	p.expect(domain.NameExistsText)
	p.send("alice2")
	p.expect(domain.JoinConfirmed)
	alice.expect(domain.JoinNotice("alice2"))
	req.Equal(2, h.registry.Len())
}

func TestSession_Time(t *testing.T) {
	fixed := time.Date(2024, time.February, 3, 7, 8, 9, 0, time.Local)
	h := newHarness(t, relaxed, func(h *harness) {
		h.now = func() time.Time { return fixed }
	})
	alice := h.join("alice")

	alice.send(`\time`)
	alice.expect("Server Time: 03/02/2024 07:08:09")
}

func TestSession_Help(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")

	alice.send(`\help`)
	for _, line := range strings.Split(domain.HelpText, "\n") {
		alice.expect(line)
	}
}

func TestSession_InvalidCommands(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	for _, line := range []string{`\dance`, `\priv bob`, `\exit now`, `\USERS`} {
		alice.send(line)
		alice.expect(domain.InvalidCommandSyntaxText)
	}

	// The session is still usable
	alice.send("still alive")
	bob.expect("alice: still alive")
}

func TestSession_BlankLinesAreIgnored(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	alice.send("   ")
	alice.send("")
	alice.send("  padded  ")
	bob.expect("alice: padded")
}

func TestSession_ProbeBytesAreStripped(t *testing.T) {
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	alice.send("hi\x01 there\r")
	bob.expect("alice: hi there")
}

func TestSession_Censor(t *testing.T) {
	ctrl := gomock.NewController(t)
	censor := mocks.NewMockCensor(ctrl)
	censor.EXPECT().Censor("what a badger").Return("what a ******")
	censor.EXPECT().Censor("badger again").Return("****** again")

	h := newHarness(t, relaxed, func(h *harness) { h.censor = censor })
	alice := h.join("alice")
	bob := h.join("bob", alice)

	alice.send("what a badger")
	bob.expect("alice: what a ******")
	alice.send(`\priv bob badger again`)
	bob.expect(`Private message from "alice" : ****** again`)
}

func TestSession_PeerDisconnectReleasesName(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	alice := h.join("alice")

	req.NoError(alice.conn.Close())

	req.Eventually(func() bool { return h.registry.Len() == 0 }, ioTimeout, 10*time.Millisecond)
	req.Eventually(func() bool {
		e, ok := h.sink.Last(event.DisconnectedType)
		return ok && e.Reason == errors.ErrPeerClosed.Error()
	}, ioTimeout, 10*time.Millisecond)
}

func TestSession_ShutdownClosesEverything(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	// When the server shuts down
	h.shutdown()

	// Then every stream is closed and the registry is empty
	alice.expectClosed()
	bob.expectClosed()
	req.Zero(h.registry.Len())
	e, ok := h.sink.Last(event.DisconnectedType)
	req.True(ok)
	req.Equal("server shutdown", e.Reason)
}

func TestSession_LifecycleEvents(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, relaxed)
	p := h.dial()
	p.send("bad!name")
	p.expect(domain.InvalidNameSyntaxText)
	p.expect(domain.NameRetry)
	p.send("alice")
	p.expect(domain.JoinConfirmed)
	p.send(`\exit`)
	p.expectClosed()

	req.Eventually(func() bool { return len(h.sink.Types()) == 4 }, ioTimeout, 10*time.Millisecond)
	req.Equal([]event.Type{
		event.ConnectedType,
		event.RejectedType,
		event.JoinedType,
		event.DisconnectedType,
	}, h.sink.Types())
}

func TestSession_LineLengthIsBounded(t *testing.T) {
	req := require.New(t)
	settings := relaxed
	settings.MaxLineLength = 8000
	h := newHarness(t, settings)
	alice := h.join("alice")
	bob := h.join("bob", alice)

	// Given a line exactly at the limit, spanning several reader buffers
	atLimit := strings.Repeat("a", settings.MaxLineLength)
	alice.send(atLimit)

	// Then it is relayed whole
	bob.expect(domain.ChatLine("alice", atLimit))

	// When alice streams past the limit without a newline
	_ = alice.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	_, err := alice.conn.Write([]byte(strings.Repeat("x", settings.MaxLineLength+2000)))
	req.NoError(err)

	// Then only her session ends, with a transport-class cause
	alice.expectClosed()
	req.Eventually(func() bool {
		e, ok := h.sink.Last(event.DisconnectedType)
		return ok && e.Name == "alice" && e.Reason == errors.ErrLineTooLong.Error()
	}, ioTimeout, 10*time.Millisecond)
	req.ErrorIs(errors.ErrLineTooLong, errors.ErrTransport)
	_, ok := h.registry.Lookup("alice")
	req.False(ok)

	bob.send(`\users`)
	bob.expect(domain.UsersLine([]domain.ClientName{"bob"}))
}

func TestSession_DefaultLineLength(t *testing.T) {
	req := require.New(t)
	client, server := net.Pipe()
	defer client.Close()

	// Given settings without a line limit
	s := New(logs.GetLoggerFromLevel(slog.LevelDebug), server, nil, nil, nil, nil, relaxed)

	// Then the default applies
	req.Equal(DefaultMaxLineLength, s.settings.MaxLineLength)
}
