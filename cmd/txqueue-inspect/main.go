// Command txqueue-inspect lists the durable records of a transaction queue
// directory and optionally purges them.
//
// The daemon must not be running against the same directory while records
// are purged.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/codec"
	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/internal/store"
)

const exitUsage = 2

var errCorruptRecords = errors.New("corrupt records found")

type options struct {
	dir     string
	queueID string
	purge   bool
	asJSON  bool
}

type recordView struct {
	Key         uint32                      `json:"key"`
	File        string                      `json:"file"`
	Transaction *domain.TransactionResponse `json:"transaction,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

func main() {
	defaults := config.QueueConfig{Dir: "./data/queue", ID: "transactions"}
	if cfg, err := config.Load(); err == nil {
		defaults = cfg.Queue
	}

	var opts options
	flag.StringVar(&opts.dir, "dir", defaults.Dir, "Queue directory")
	flag.StringVar(&opts.queueID, "queue", defaults.ID, "Queue id")
	flag.BoolVar(&opts.purge, "purge", false, "Delete every listed record")
	flag.BoolVar(&opts.asJSON, "json", false, "Print records as JSON lines")
	flag.Parse()

	if opts.dir == "" || opts.queueID == "" {
		fmt.Fprintln(os.Stderr, "dir and queue are required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	if err := run(os.Stdout, opts); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func run(w io.Writer, opts options) error {
	s, err := store.Open(opts.dir, opts.queueID)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	c, err := codec.NewBinaryCodec[domain.Transaction]()
	if err != nil {
		return err
	}

	records, err := s.ReadAll()
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})

	views := make([]recordView, 0, len(records))
	corrupt := 0
	for _, rec := range records {
		view := recordView{Key: rec.Key, File: rec.Path}
		trx, err := c.Decode(rec.Data)
		if err != nil {
			view.Error = err.Error()
			corrupt++
		} else {
			resp := domain.NewTransactionResponse(trx)
			view.Transaction = &resp
		}
		views = append(views, view)
	}

	if err := printViews(w, views, opts.asJSON); err != nil {
		return err
	}

	if opts.purge {
		var errs []error
		for _, rec := range records {
			if err := s.Delete(rec.Key); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Fprintf(w, "purged %d records\n", len(records))
		return nil
	}

	if corrupt > 0 {
		return fmt.Errorf("%w: %d of %d", errCorruptRecords, corrupt, len(records))
	}
	return nil
}

func printViews(w io.Writer, views []recordView, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, v := range views {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tID\tACCOUNT\tAMOUNT\tCURRENCY\tKIND\tCREATED")
	for _, v := range views {
		if v.Transaction == nil {
			fmt.Fprintf(tw, "%08x\tCORRUPT\t%s\t\t\t\t\n", v.Key, v.Error)
			continue
		}
		t := v.Transaction
		fmt.Fprintf(tw, "%08x\t%s\t%s\t%d\t%s\t%s\t%s\n",
			v.Key, t.ID, t.Account, t.Amount, t.Currency, t.Kind, t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return tw.Flush()
}
