package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"nerdsphere/domain"
	"nerdsphere/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	limit := flag.Int("limit", domain.MaxRecentMessages, "Maximum number of rows, oldest first")
	expired := flag.Bool("expired", false, "Only show messages past the retention horizon")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Created", "ID", "Fingerprint", "Age", "Content"})
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

	now := time.Now().UTC()
	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(repositories.MessageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && rows < *limit; it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				message, err := repositories.DecodeRecord(v)
				if err != nil {
					// Keep going, one bad record should not hide the others
					fmt.Printf("Error decoding key %s: %v\n", string(item.Key()), err)
					return nil
				}
				if *expired && !message.Expired(now) {
					return nil
				}

				displayID := message.ID
				if len(displayID) > 8 {
					displayID = displayID[:8]
				}
				table.Append([]string{
					message.CreatedAt.Format(time.DateTime),
					displayID,
					message.Fingerprint,
					now.Sub(message.CreatedAt).Round(time.Second).String(),
					strings.ReplaceAll(message.Content, "\n", " "),
				})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("%d message(s)\n", rows)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
