package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// Options tune an Extractor built with NewExtractor
type Options struct {
	SingleWordFallback bool
	ContextRadius      int
	MinSpanLength      int
	Logger             *slog.Logger
}

// DefaultOptions mirrors the nlp section of model.DefaultConfig
func DefaultOptions() Options {
	return Options{
		SingleWordFallback: true,
		ContextRadius:      DefaultContextRadius,
		MinSpanLength:      3,
	}
}

// Extractor finds UK places and role-tagged persons in free text.
// It is immutable once built and safe for concurrent use.
type Extractor struct {
	recognizer *Recognizer
	augmenter  *Augmenter
	filter     *Filter
	roles      *RoleClassifier
	gazetteer  *Gazetteer
	log        *slog.Logger
}

// NewExtractor assembles an extractor from an already loaded model and gazetteer
func NewExtractor(m Model, g *Gazetteer, opts Options) *Extractor {
	log := logger.OrDiscard(opts.Logger)
	return &Extractor{
		recognizer: NewRecognizer(m, opts.MinSpanLength, log),
		augmenter:  NewAugmenter(g),
		filter:     NewFilter(g, opts.SingleWordFallback),
		roles:      NewRoleClassifier(opts.ContextRadius),
		gazetteer:  g,
		log:        log,
	}
}

// New loads the model and gazetteer named in cfg. A model that cannot be
// loaded yields an error wrapping ErrModelUnavailable.
func New(cfg model.NLPConfig, log *slog.Logger) (*Extractor, error) {
	log = logger.OrDiscard(log)

	m, err := LoadProseModel(cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	var g *Gazetteer
	if cfg.GazetteerFile != "" {
		g, err = LoadGazetteer(cfg.GazetteerFile)
	} else {
		g, err = DefaultGazetteer()
	}
	if err != nil {
		return nil, fmt.Errorf("load gazetteer: %w", err)
	}

	log.Debug("extractor ready",
		slog.String("model", m.Name()),
		slog.Int("gazetteer_entries", g.Len()),
		slog.Bool("single_word_fallback", cfg.SingleWordFallback))

	return NewExtractor(m, g, Options{
		SingleWordFallback: cfg.SingleWordFallback,
		ContextRadius:      cfg.ContextRadius,
		MinSpanLength:      cfg.MinSpanLength,
		Logger:             log,
	}), nil
}

// Filter exposes the location filter
func (e *Extractor) Filter() *Filter { return e.filter }

// Gazetteer exposes the loaded gazetteer
func (e *Extractor) Gazetteer() *Gazetteer { return e.gazetteer }

// Extract returns the plausible locations and the role-tagged persons in text
func (e *Extractor) Extract(text string) model.EnrichmentResult {
	result := model.NewEnrichmentResult()
	text = sanitize(text)
	if strings.TrimSpace(text) == "" {
		return result
	}

	analysis := e.recognizer.Analyze(text)
	result.Locations = e.locations(text, analysis)

	for _, span := range analysis.Spans {
		if span.Category != model.CategoryPerson {
			continue
		}
		result.AddPerson(span.Text, e.roles.Classify(span.Text, text, span.Start, span.End))
	}
	return result
}

// ExtractLocationsOnly skips role classification
func (e *Extractor) ExtractLocationsOnly(text string) model.LocationSet {
	text = sanitize(text)
	if strings.TrimSpace(text) == "" {
		return model.NewLocationSet()
	}
	return e.locations(text, e.recognizer.Analyze(text))
}

func (e *Extractor) locations(text string, analysis Analysis) model.LocationSet {
	candidates := model.NewLocationSet()
	for _, span := range analysis.Spans {
		if span.Category == model.CategoryLocation {
			candidates.Add(span.Text)
		}
	}
	candidates = e.augmenter.Augment(text, analysis.Tokens, candidates)
	return e.filter.Apply(candidates)
}

// sanitize repairs invalid UTF-8 and normalises to NFC
func sanitize(text string) string {
	return norm.NFC.String(strings.ToValidUTF8(text, "\uFFFD"))
}
