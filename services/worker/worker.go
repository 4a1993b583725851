package worker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"sjsage522/immunescraper/internal/crawler"
	"sjsage522/immunescraper/internal/manifest"
	"sjsage522/immunescraper/internal/model"
	"sjsage522/immunescraper/internal/refine"
	"sjsage522/immunescraper/logger"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
	"sjsage522/immunescraper/services/publisher"
)

// Mode selects where a run gets its raw document from
type Mode int

const (
	// ModeRefine refines an existing instances file
	ModeRefine Mode = iota
	// ModeScrape crawls fresh data before refining
	ModeScrape
)

func (m Mode) String() string {
	if m == ModeScrape {
		return "scrape"
	}
	return "refine"
}

// Files names the document read in refine mode and the one written at the end
type Files struct {
	Input  string
	Output string
}

// Summary describes a finished run
type Summary struct {
	RunID      string
	Mode       Mode
	OutputFile string
	Wrapped    bool
	Counts     model.Counts
	Stats      refine.Stats
	Published  int
	Elapsed    time.Duration
}

// Worker handles the scrape, refine, write and publish sequence
type Worker struct {
	crawler   crawler.Crawler
	manifest  *manifest.Manifest
	refiner   *refine.Refiner
	publisher publisher.Publisher
	files     Files
}

// NewWorker creates a new worker. The crawler is only needed in scrape mode
// and the publisher may be nil.
func NewWorker(
	c crawler.Crawler,
	m *manifest.Manifest,
	refiner *refine.Refiner,
	pub publisher.Publisher,
	files Files,
) *Worker {
	if files.Output == "" {
		files.Output = files.Input
	}
	return &Worker{
		crawler:   c,
		manifest:  m,
		refiner:   refiner,
		publisher: pub,
		files:     files,
	}
}

// Run executes one run. The output file is only written once the whole
// document has been built and refined in memory.
func (w *Worker) Run(ctx context.Context, mode Mode) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.ForRun(runID).Attach(ctx)
	log := logger.ForWorker().WithContext(ctx)

	log.Info().Str("mode", mode.String()).Msg("Run started")

	doc, wrapped, err := w.load(ctx, mode)
	if err != nil {
		return nil, err
	}
	if wrapped {
		log.Info().Str("file", w.files.Input).Msg("Added missing instances wrapper")
	}

	stats := w.refiner.Refine(doc)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := refine.WriteDocument(w.files.Output, doc); err != nil {
		return nil, err
	}
	log.Info().Str("file", w.files.Output).Msg("Document written")

	summary := &Summary{
		RunID:      runID,
		Mode:       mode,
		OutputFile: w.files.Output,
		Wrapped:    wrapped,
		Counts:     doc.Count(),
		Stats:      stats,
		Published:  w.publish(ctx, runID, doc),
		Elapsed:    time.Since(start),
	}

	log.Info().Dur("elapsed", summary.Elapsed).Msg("Run finished")
	return summary, nil
}

func (w *Worker) load(ctx context.Context, mode Mode) (*model.Document, bool, error) {
	if mode != ModeScrape {
		return refine.LoadDocument(w.files.Input)
	}

	if w.crawler == nil || w.manifest == nil {
		return nil, false, scrapeerrors.NewConfiguration("scrape mode needs a crawler and a manifest", nil)
	}
	doc, err := w.crawler.ScrapeAll(ctx, w.manifest)
	return doc, false, err
}

// publish sends every instance to the stream. Failures are logged only.
func (w *Worker) publish(ctx context.Context, runID string, doc *model.Document) int {
	if w.publisher == nil {
		return 0
	}
	log := logger.ForPublisher().WithContext(ctx)

	published, err := publisher.PublishDocument(ctx, w.publisher, runID, doc)
	if err != nil {
		log.Error().Err(err).Int("published", published).Msg("Publishing stopped")
	}

	// Trim all streams after publishing
	if err := w.publisher.TrimStreams(ctx); err != nil {
		log.Error().Err(err).Msg("Stream trimming failed")
	}
	return published
}

// Print writes a human readable report of the run
func (s *Summary) Print(out io.Writer) {
	fmt.Fprintf(out, "Run %s (%s) finished in %s\n", s.RunID, s.Mode, s.Elapsed.Round(time.Millisecond))
	if s.Wrapped {
		fmt.Fprintln(out, "Added missing 'instances' wrapper to JSON data.")
	}
	fmt.Fprintf(out, "Raids: %d, dungeons: %d, NPCs: %d, spells: %d\n",
		s.Counts.Raids, s.Counts.Dungeons, s.Counts.Npcs, s.Counts.Spells)
	fmt.Fprintf(out, "Removed: %d denylisted spells, %d denylisted NPCs, %d invalid spells, %d duplicate spells, %d NPCs without spells\n",
		s.Stats.DeniedSpells, s.Stats.DeniedNpcs, s.Stats.InvalidSpells, s.Stats.DuplicateSpells, s.Stats.PrunedNpcs)
	fmt.Fprintf(out, "can_immune: %d derived, %d kept\n", s.Stats.DerivedImmunity, s.Stats.KeptImmunity)
	if s.Published > 0 {
		fmt.Fprintf(out, "Published %d instances\n", s.Published)
	}
	fmt.Fprintf(out, "Output written to %s\n", s.OutputFile)
}
