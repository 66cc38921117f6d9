package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jengzang/tour-geocompare/internal/config"
	"github.com/jengzang/tour-geocompare/internal/database"
	"github.com/jengzang/tour-geocompare/internal/geocompare"
	"github.com/jengzang/tour-geocompare/internal/middleware"
	"github.com/jengzang/tour-geocompare/internal/repository"
	"github.com/jengzang/tour-geocompare/internal/service"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yml")
		dbPath     = flag.String("db", "", "sqlite database (overrides config)")
		tourID     = flag.Int64("tour", 0, "reference tour id")
		first      = flag.Int("first", 0, "first sample index of the reference segment")
		last       = flag.Int("last", -1, "last sample index of the reference segment, -1 for the last sample")
		maxDiff    = flag.Float64("max-diff", -1, "relative difference filter in percent, negative disables")
		maxResults = flag.Int("max-results", 0, "maximum number of results, 0 disables")
		appFilter  = flag.Bool("app-filter", false, "restrict candidates to the configured person and tour types")
		token      = flag.String("token", "", "print an API token for this subject and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if *token != "" {
		if cfg.Auth.JWTSecret == "" {
			log.Fatal("No JWT secret configured")
		}
		signed, err := middleware.IssueToken(cfg.Auth.JWTSecret, *token, 24*time.Hour)
		if err != nil {
			log.Fatal("Failed to issue token:", err)
		}
		fmt.Println(signed)
		return
	}

	if *tourID <= 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	db, err := database.Open(database.Config{Path: cfg.Database.Path, Migrate: cfg.Database.Migrate})
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	ctx := context.Background()
	tourRepo := repository.NewTourRepository(db)
	tour, err := tourRepo.LoadTour(ctx, *tourID)
	if err != nil {
		log.Fatal("Failed to load tour:", err)
	}
	if tour == nil {
		log.Fatalf("Tour %d not found", *tourID)
	}
	if *last < 0 {
		*last = tour.NumSamples() - 1
	}

	manager := geocompare.NewManager(service.CompareStore{
		TourRepository:    tourRepo,
		GeoPartRepository: repository.NewGeoPartRepository(db, cfg.AppFilter.RepositoryFilter()),
	}, cfg.Compare.EngineConfig())
	defer manager.Close()

	filter := geocompare.FilterOptions{
		RelativeDiffEnabled: *maxDiff >= 0,
		RelativeDiffPercent: *maxDiff,
		MaxResultsEnabled:   *maxResults > 0,
		MaxResults:          *maxResults,
	}

	req, err := manager.Start(geocompare.ReferenceSegment{
		TourID:     tour.ID,
		Samples:    tour.Samples,
		FirstIndex: *first,
		LastIndex:  *last,
	}, geocompare.StartParams{UseAppFilter: *appFilter, Filter: filter})
	if err != nil {
		log.Fatal("Failed to start comparison:", err)
	}

	done := make(chan *geocompare.Request, 1)
	manager.OnCandidateCompleted(req, func(ev geocompare.ProgressEvent) {
		log.Printf("Compared %d/%d tours", ev.Completed, ev.Total)
	})
	manager.OnGenerationCompleted(req, func(r *geocompare.Request) {
		done <- r
	})

	printResults(manager.ApplyFilter(<-done, filter))
}

func printResults(view geocompare.FilteredView) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "%d of %d tours, max diff %d\n", len(view.Entries), view.NumUnfiltered, view.MaxDiff)
	fmt.Fprintln(w, "TOUR\tSTART\tTITLE\tDIFF\tREL %\tSAMPLES\tDISTANCE km\tPACE s/km")
	for _, e := range view.Entries {
		t := e.Tour
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%d..%d\t%.2f\t%.0f\n",
			t.TourID,
			time.Unix(t.TourStartTime, 0).Format("2006-01-02 15:04"),
			t.TourTitle,
			t.BestMatch,
			e.RelativeDiff,
			t.OriginalStartIndex,
			t.OriginalEndIndex,
			t.Stats.Distance/1000,
			t.Stats.AvgPace,
		)
	}
}
