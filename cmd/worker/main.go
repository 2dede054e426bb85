package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"timeclock/internal/config"
	"timeclock/internal/queue"
	"timeclock/internal/sheets"
	"timeclock/internal/store"
	"timeclock/internal/timesheet"
)

// Worker consumes entry messages and mirrors each entry to the
// configured spreadsheet. Failures are logged and skipped; the entry
// in the database is always the source of truth.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "timeclock:entries")
	}

	repo := timesheet.NewRepository(db.Client)
	sheet := sheets.New(cfg.SheetsBaseURL, cfg.SheetsSpreadsheetID, cfg.SheetsToken)
	if !sheet.Configured() {
		log.Println("WARNING: spreadsheet sync not configured (SHEETS_SPREADSHEET_ID / SHEETS_TOKEN not set)")
		log.Println("worker will drain the queue without exporting")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeEntryCreated {
			continue
		}

		id, err := strconv.ParseInt(msg.Body, 10, 64)
		if err != nil {
			log.Printf("bad entry id %q: %v", msg.Body, err)
			continue
		}

		entry, err := repo.GetEntry(ctx, id)
		if err != nil {
			log.Printf("fetch entry %d failed: %v", id, err)
			continue
		}

		if !sheet.Configured() {
			continue
		}

		row := sheets.Row{
			WorkDate:    entry.WorkDate.Format("2006-01-02"),
			Username:    entry.Username,
			StartTime:   entry.StartTime,
			EndTime:     entry.EndTime,
			Description: entry.Description,
		}
		if entry.ProjectName != nil {
			row.ProjectName = *entry.ProjectName
		}

		if err := sheet.Append(ctx, row); err != nil {
			log.Printf("sheet append for entry %d failed: %v", id, err)
			continue
		}
		log.Printf("entry %d exported", id)
	}

	log.Println("worker stopped")
}
