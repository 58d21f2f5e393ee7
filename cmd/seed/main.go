// Command seed populates a local data directory with sample disasters,
// resources, and user posts so the API has something to serve during
// development.
//
// Usage:
//
//	go run ./cmd/seed -data-dir ./data
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/store"
)

var baseDate = time.Date(2024, time.July, 23, 12, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "./data", "database directory to seed")
	flag.Parse()

	// Fixed clock for reproducible IDs and timestamps.
	clk := clockwork.NewFakeClockAt(baseDate)
	domain.SetClock(clk)
	defer domain.SetClock(nil)

	db, err := store.OpenDB(*dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	records := store.New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	disasters := []domain.Disaster{
		{
			Title:        "Springfield Flood",
			LocationName: "Springfield, IL",
			Description:  "Sangamon River over flood stage after three days of rain.",
			Tags:         []string{"flood", "urgent"},
			OwnerID:      "citizen1",
			Lat:          39.7817,
			Lon:          -89.6501,
		},
		{
			Title:        "Cedar Canyon Wildfire",
			LocationName: "Cedar Canyon, CA",
			Description:  "Fast-moving wildfire, evacuation orders for zones 3 and 4.",
			Tags:         []string{"wildfire"},
			OwnerID:      "reporter7",
			Lat:          34.2014,
			Lon:          -117.3089,
		},
		{
			Title:        "Gulf Coast Hurricane Watch",
			LocationName: "Biloxi, MS",
			Description:  "Category 2 hurricane expected to make landfall Thursday.",
			Tags:         []string{"hurricane", "storm"},
			OwnerID:      "citizen1",
		},
	}

	posts := map[int][]string{
		0: {"Water over the road on 5th and Main, turn around.", "Shelter at the community center still has space."},
		1: {"Smoke visible from the ridge, air quality dropping fast."},
	}

	resources := map[int][]domain.Resource{
		0: {
			{Name: "Lanphier High School Shelter", LocationName: "Springfield, IL", Type: "shelter", Lat: 39.8212, Lon: -89.6384},
			{Name: "Memorial Medical Center", LocationName: "Springfield, IL", Type: "medical", Lat: 39.8091, Lon: -89.6564},
		},
		1: {
			{Name: "Red Cross Staging Area", LocationName: "San Bernardino, CA", Type: "supply", Lat: 34.1083, Lon: -117.2898},
		},
	}

	for i, d := range disasters {
		d.AuditTrail = []domain.AuditEntry{{Action: "create", UserID: d.OwnerID, Timestamp: domain.Now()}}
		if err := records.CreateDisaster(&d); err != nil {
			return fmt.Errorf("seed disaster %q: %w", d.Title, err)
		}
		fmt.Printf("seeded disaster %s  %s\n", d.ID, d.Title)

		for _, text := range posts[i] {
			clk.Advance(7 * time.Minute)
			p := domain.SocialPost{DisasterID: d.ID, Post: text, User: "@" + d.OwnerID, Platform: "Twitter", Source: "user"}
			if err := records.CreateSocialPost(&p); err != nil {
				return fmt.Errorf("seed post for %q: %w", d.Title, err)
			}
		}
		for _, r := range resources[i] {
			clk.Advance(time.Minute)
			r.DisasterID = d.ID
			if err := records.CreateResource(&r); err != nil {
				return fmt.Errorf("seed resource for %q: %w", d.Title, err)
			}
		}
		clk.Advance(time.Hour)
	}

	fmt.Printf("seeded %d disasters into %s\n", len(disasters), *dataDir)
	return nil
}
