package session

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"time"
)

// probe checks a silent peer. It sends the control byte and waits up to the probe
// timeout for any byte back. The echoed control byte is consumed; anything else
// belongs to the next line and is pushed back into the reader.
func (s *Session) probe() error {
	s.counters.IncrProbesSent()
	s.log.Debug("Peer silent, sending liveness probe", "name", s.name, "state", s.State())

	if err := s.writeRaw([]byte{domain.ProbeByte}); err != nil {
		return err
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.settings.ProbeTimeout)); err != nil {
		return s.transportError(err)
	}

	b, err := s.reader.ReadByte()
	if err != nil {
		if isTimeout(err) {
			s.counters.IncrProbeFailures()
			s.log.Info("Liveness probe unanswered", "name", s.name)
			return errors.ErrLivenessTimeout
		}
		return s.transportError(err)
	}
	if b != domain.ProbeByte {
		_ = s.reader.UnreadByte()
	}
	return nil
}
