package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"soulconnect/internal"
)

// Read-only inspector over the Badger store. Useful while the server
// runs: BypassLockGuard allows opening despite the server holding the
// directory lock.
func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, identity:, room:)")
	flag.Parse()

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	header := fmt.Sprintf("  ====== soulconnect viewer (%s) ======", *prefix)
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(header))

	switch *prefix {
	case "identity:":
		err = renderIdentities(db)
	case "room:":
		err = renderRooms(db)
	default:
		err = renderMessages(db, *prefix)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
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

func renderMessages(db *badger.DB, prefix string) error {
	type messageRow struct {
		ID         string    `json:"id"`
		Room       string    `json:"room"`
		SenderName string    `json:"sender_name"`
		Content    string    `json:"content"`
		Kind       string    `json:"kind"`
		SentAt     time.Time `json:"sent_at"`
	}

	table := newTable([]string{"Time", "Room", "Sender", "Kind", "Content"})
	err := scan(db, prefix, func(_ string, val []byte) error {
		var row messageRow
		if err := json.Unmarshal(val, &row); err != nil {
			return nil
		}
		content := row.Content
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		table.Append([]string{
			row.SentAt.Format("15:04:05"),
			shorten(row.Room),
			row.SenderName,
			row.Kind,
			content,
		})
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func renderIdentities(db *badger.DB) error {
	type identityRow struct {
		ID           string    `json:"id"`
		DisplayName  string    `json:"display_name"`
		Email        string    `json:"email"`
		Synthetic    bool      `json:"synthetic"`
		Online       bool      `json:"online"`
		LastActiveAt time.Time `json:"last_active_at"`
	}

	table := newTable([]string{"ID", "Name", "Email", "AI", "Online", "Last Active"})
	err := scan(db, "identity:", func(_ string, val []byte) error {
		var row identityRow
		if err := json.Unmarshal(val, &row); err != nil {
			return nil
		}
		online := "no"
		if row.Online {
			online = color.Green.Render("yes")
		}
		ai := ""
		if row.Synthetic {
			ai = color.Magenta.Render("AI")
		}
		table.Append([]string{
			shorten(row.ID),
			row.DisplayName,
			row.Email,
			ai,
			online,
			row.LastActiveAt.Format(time.RFC822),
		})
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func renderRooms(db *badger.DB) error {
	type roomRow struct {
		ID             string    `json:"id"`
		Participants   []string  `json:"participants"`
		Kind           string    `json:"kind"`
		LastActivityAt time.Time `json:"last_activity_at"`
		Active         bool      `json:"active"`
	}

	table := newTable([]string{"ID", "Kind", "Participants", "Last Activity", "Active"})
	err := scan(db, "room:", func(_ string, val []byte) error {
		var row roomRow
		if err := json.Unmarshal(val, &row); err != nil {
			return nil
		}
		table.Append([]string{
			shorten(row.ID),
			row.Kind,
			fmt.Sprintf("%d", len(row.Participants)),
			row.LastActivityAt.Format(time.RFC822),
			fmt.Sprintf("%t", row.Active),
		})
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func scan(db *badger.DB, prefix string, fn func(key string, val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			if err := item.Value(func(v []byte) error {
				return fn(string(item.Key()), v)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func shorten(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
