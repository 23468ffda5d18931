package main

import (
	"comms-lab/infrastructure/storage"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "thread:", "Prefix to scan, one of "+strings.Join(storage.Prefixes, " "))
	limit := flag.Int("limit", 200, "Maximum number of rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	records, err := scan(db, *prefix, *limit)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" %s %d record(s) ", *prefix, len(records))))
	render(os.Stdout, records)
}

func scan(db *badger.DB, prefix string, limit int) ([]storage.Record, error) {
	var records []storage.Record
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && len(records) < limit; it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				records = append(records, storage.DescribeRecord(item.KeyCopy(nil), v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

func render(w io.Writer, records []storage.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Entity", "At", "Key", "Detail"})
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

	for _, rec := range records {
		at := "--:--:--"
		if !rec.At.IsZero() {
			at = rec.At.UTC().Format(time.DateTime)
		}
		table.Append([]string{rec.Kind, rec.EntityID, at, rec.Key, rec.Detail})
	}
	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
