package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sms-ledger/internal/ingest"
)

// demoMessages are typical bank and UPI notifications. They are fed through
// the ingestion pipeline so the demo data exercises the parser end to end.
var demoMessages = []struct {
	sender string
	text   string
	ago    time.Duration
}{
	{"HDFC-BANK", "Dear Customer, Rs.500.00 debited from A/c **1234 on 28-Sep-25 at STARBUCKS. Avl Bal: Rs.4,500.00", 72 * time.Hour},
	{"UPI", "UPI: Rs.1200 credited to your account from John Doe. Available balance: Rs.5,700.00", 48 * time.Hour},
	{"PAYTM", "Payment of Rs.250.00 made via UPI to Zomato. Balance: Rs.5,450.00", 24 * time.Hour},
	{"ICICI-BANK", "Rs.45000.00 credited to A/c XX5678 towards salary. Available balance: Rs.50,450.00", 20 * 24 * time.Hour},
	{"ICICI-BANK", "Rs.1,850.00 spent on ICICI Bank Card XX5678 at AMAZON. Avl bal Rs.48,600.00", 12 * 24 * time.Hour},
	{"AXIS-BANK", "INR 620.00 debited from A/c XX9012 for electric bill payment. Bal: INR 47,980.00", 6 * 24 * time.Hour},
	{"GPAY", "Rs.180 paid via Google Pay to Uber India. UPI Ref 412345678901", 5 * time.Hour},
}

// seedDemoData ingests the demo messages, dated relative to now.
// Idempotent: will only run if there are zero transactions present.
func seedDemoData(ctx context.Context, store Store, pipeline *ingest.Pipeline, now time.Time, log zerolog.Logger) error {
	existing, err := store.ListTransactions(ctx, transactionFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("checking existing transactions: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Msg("Transactions already present, skipping demo data")
		return nil
	}

	stored := 0
	for i, m := range demoMessages {
		result, err := pipeline.Process(ctx, ingest.Message{
			ID:        fmt.Sprintf("demo-%d", i+1),
			Text:      m.text,
			Sender:    m.sender,
			Timestamp: now.Add(-m.ago).Truncate(time.Hour),
		})
		if err != nil {
			return fmt.Errorf("seeding demo message %d: %w", i+1, err)
		}
		if result.Outcome == ingest.OutcomeStored {
			stored++
		}
	}
	log.Info().Int("stored", stored).Int("messages", len(demoMessages)).Msg("Demo data seeded")
	return nil
}
