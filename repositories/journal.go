//go:generate go run go.uber.org/mock/mockgen -source=journal.go -destination=../mocks/mock_journal_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain/event"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const journalPrefix = "evt:"

type IJournalRepository interface {
	Store(e event.Event) error
	List(limit int) ([]event.Event, error)
}

type JournalRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewJournalRepository(db *badger.DB, log *slog.Logger) JournalRepository {
	return JournalRepository{db: db, log: log}
}

// Store persists a lifecycle event in BadgerDB.
// The key is formatted as "evt:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the event UUID as a tie breaker for equal timestamps.
func (j JournalRepository) Store(e event.Event) error {
	bytes, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(e), bytes)
	})
}

// List returns up to limit events, newest first. A limit <= 0 returns everything.
func (j JournalRepository) List(limit int) ([]event.Event, error) {
	var values [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		prefix := []byte(journalPrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then walk backwards
		seekKey := append([]byte(journalPrefix), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(values) == limit {
				j.log.Debug(fmt.Sprintf("Maximum of %d events reached", limit))
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(values))
	for _, v := range values {
		var e event.Event
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// Types returns how many events of each type are in the journal.
func (j JournalRepository) Types() (map[event.Type]int, error) {
	events, err := j.List(0)
	if err != nil {
		return nil, err
	}
	return lo.CountValuesBy(events, func(e event.Event) event.Type { return e.Type }), nil
}

func journalKey(e event.Event) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", journalPrefix, e.CreatedAt.UnixNano(), e.ID))
}
