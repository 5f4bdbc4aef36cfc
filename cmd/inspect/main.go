package main

import (
	"chat-relay/domain/event"
	"chat-relay/internal"
	"chat-relay/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to the journal database")
	limit := flag.Int("limit", 50, "Number of events to show, newest first (0 for all)")
	flag.Parse()

	// BypassLockGuard allows reading while the relay holds the lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	journal := repositories.NewJournalRepository(db, logs.GetLoggerFromString(config.LogLevel))
	events, err := journal.List(*limit)
	if err != nil {
		log.Fatal(err)
	}
	types, err := journal.Types()
	if err != nil {
		log.Fatal(err)
	}

	renderEvents(os.Stdout, events)
	renderSummary(os.Stdout, types)
}

func renderEvents(w io.Writer, events []event.Event) {
	table := newTable(w)
	table.SetHeader([]string{"At", "Type", "Session", "Remote", "Name", "Reason"})
	for _, e := range events {
		table.Append([]string{
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Type),
			shortID(e.SessionID.String()),
			e.RemoteAddr,
			e.Name,
			e.Reason,
		})
	}
	table.Render()
}

func renderSummary(w io.Writer, types map[event.Type]int) {
	keys := lo.Keys(types)
	slices.Sort(keys)

	table := newTable(w)
	table.SetHeader([]string{"Type", "Count"})
	for _, k := range keys {
		table.Append([]string{string(k), strconv.Itoa(types[k])})
	}
	_, _ = fmt.Fprintln(w)
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// shortID keeps the first 8 characters for readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
