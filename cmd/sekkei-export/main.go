// Command sekkei-export reads transcripts out of a local Sekkei SQLite
// store. With -id it prints one transcript as JSON; without, it lists
// the stored transcripts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ashita-ai/sekkei/internal/storage"
	"github.com/ashita-ai/sekkei/internal/storage/local"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sekkei-export:", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := flag.String("db", "sekkei.db", "path to the local SQLite store")
	id := flag.String("id", "", "transcript id to export (omit to list)")
	owner := flag.String("owner", "", "filter the listing by owner id")
	flag.Parse()

	store, err := local.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if *id != "" {
		tid, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("parse id: %w", err)
		}
		t, err := store.GetTranscript(ctx, tid)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("transcript %s not found", tid)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	var ownerID *string
	if *owner != "" {
		ownerID = owner
	}
	list, err := store.ListTranscripts(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, t := range list {
		fmt.Printf("%s\t%s\t%s\t%s\n", t.ID, t.CreatedAt.Format("2006-01-02 15:04"), t.DatabaseType, t.Title)
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "no transcripts")
	}
	return nil
}
