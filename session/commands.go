package session

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// dispatch executes a parsed command on behalf of the session.
func (s *Session) dispatch(cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.ExitCommand:
		return errExit
	case domain.TimeCommand:
		return s.reply(domain.TimeLine(s.now()))
	case domain.HelpCommand:
		return s.reply(domain.HelpText)
	case domain.UsersCommand:
		names := lo.Map(s.registry.Snapshot(), func(m contract.Member, _ int) domain.ClientName {
			return m.Name()
		})
		return s.reply(domain.UsersLine(names))
	case domain.PrivCommand:
		s.sendPrivate(c)
		return nil
	default:
		s.log.Debug(fmt.Sprintf("Invalid command : %v", c), "name", s.name, "error", errors.ErrInvalidCommandSyntax)
		return s.reply(domain.InvalidCommandSyntaxText)
	}
}

// sendPrivate delivers to the target only. An unknown target drops the message
// without telling the sender.
func (s *Session) sendPrivate(cmd domain.PrivCommand) {
	target, ok := s.registry.Lookup(cmd.Target)
	if !ok {
		s.counters.IncrDroppedPrivate()
		s.log.Debug("Private message dropped, unknown target", "name", s.name, "target", cmd.Target)
		return
	}
	s.counters.IncrPrivate()
	if err := target.Deliver(domain.PrivateLine(s.name, s.censor.Censor(cmd.Body))); err != nil {
		s.log.Warn("Private message not delivered", "name", s.name, "target", cmd.Target, "error", err)
	}
}

// broadcast writes text to every registered member except the sender.
// Members are taken from one registry snapshot and written to in parallel;
// it returns once every write has finished so the sender's lines keep their order.
func (s *Session) broadcast(text string) {
	recipients := lo.Filter(s.registry.Snapshot(), func(m contract.Member, _ int) bool {
		return m.Name() != s.name
	})

	var wg sync.WaitGroup
	for _, member := range recipients {
		wg.Add(1)
		go func(m contract.Member) {
			defer wg.Done()
			if err := m.Deliver(text); err != nil {
				s.log.Warn("Broadcast not delivered", "name", s.name, "to", m.Name(), "error", err)
			}
		}(member)
	}
	wg.Wait()
}
