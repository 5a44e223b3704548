// Command inboxctl inspects and prunes the processed_events table used by
// the Postgres dedupe backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maycon01282/bot2/internal/config"
	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/infrastructure/postgres"
)

func main() {
	schema := flag.Bool("schema", false, "create the processed_events table if missing")
	prune := flag.Bool("prune", false, "delete records older than DEDUPE_TTL")
	limit := flag.Int("list", 10, "number of recent records to print (0 to skip)")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgCfg := postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
	}
	pool, err := pgxpool.New(ctx, pgCfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewInboxRepository(pool, cfg.Dedupe.TTL)

	if *schema {
		if err := repo.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Schema failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema ready")
	}

	if *prune {
		if err := pruneRecords(ctx, repo, cfg.Dedupe.TTL, time.Now(), os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *limit <= 0 {
		return
	}

	records, err := repo.ListRecent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("--- Processed events ---")
	for _, r := range records {
		fmt.Printf("Source: %s | ID: %s | State: %s | Processed: %s\n", r.Source, r.EventID, r.State, r.ProcessedAt.Format(time.RFC3339))
	}
}

func pruneRecords(ctx context.Context, ev dedupe.Evictor, ttl time.Duration, now time.Time, out io.Writer) error {
	n, err := ev.Evict(ctx, now.Add(-ttl))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pruned %d records older than %s\n", n, ttl)
	return nil
}
