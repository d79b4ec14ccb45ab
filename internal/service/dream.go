package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raphaelgruber/ravan/internal/lexicon"
	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

const (
	dreamSignalLimit  = 10
	patternDreamLimit = 30
	topSymbols        = 10
	minSymbolRunes    = 4

	defaultSymbolMeaning = "این نماد در رویاهای شما تکرار شده و ارزش گفتگو در جلسه درمانی را دارد."
)

// Mood context thresholds.
const (
	positiveSentiment = 0.3
	negativeSentiment = -0.3
	positiveScore     = 50.0
	negativeScore     = 30.0
	neutralScore      = 50.0
)

// dreamDraft is the JSON shape the model returns for a dream.
type dreamDraft struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	Interpretation string `json:"interpretation"`
	Inspiration    string `json:"inspiration"`
}

func validateDreamDraft(d *dreamDraft) error {
	d.Content = strings.TrimSpace(d.Content)
	if d.Content == "" {
		return errors.New("content is empty")
	}
	return nil
}

// patternDraft is the JSON shape the model returns for symbol analysis.
type patternDraft struct {
	Patterns []symbolDraft `json:"patterns"`
}

type symbolDraft struct {
	Symbol       string   `json:"symbol"`
	Meaning      string   `json:"meaning"`
	Sentiment    *float64 `json:"sentiment"`
	RelatedTests []string `json:"relatedTests"`
}

// SymbolCount is a token and the number of times it occurs.
type SymbolCount struct {
	Symbol string
	Count  int
}

// DreamService synthesizes symbolic dreams and mines recurring symbols.
type DreamService struct {
	store   Store
	model   *llm.Model
	signals *SignalAggregator
	lex     *lexicon.Lexicon
	metrics *metrics.Collector
}

// NewDreamService creates a new dream service.
func NewDreamService(store Store, model *llm.Model, signals *SignalAggregator, lex *lexicon.Lexicon, mc *metrics.Collector) *DreamService {
	return &DreamService{store: store, model: model, signals: signals, lex: lex, metrics: mc}
}

// ownerID maps an absent user to the platform owner.
func ownerID(userID string) string {
	if userID == "" {
		return models.SystemUserID
	}
	return userID
}

// Generate synthesizes and stores a dream from the user's recent tests,
// moods and messages. An empty userID generates a platform dream.
func (s *DreamService) Generate(ctx context.Context, userID string) (dream *models.DreamRecord, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, metrics.OpDream, start, err) }()

	owner := ownerID(userID)
	bundle := s.signals.Gather(ctx, owner, []SignalKind{KindTests, KindMoods, KindUserMessages}, dreamSignalLimit)

	mood, avgSentiment, avgScore := MoodContextFor(bundle, s.lex)

	prompt := joinSections(
		section("حال و هوای کلی", string(mood)),
		section("نتایج آزمون‌ها", bundle.Render(KindTests)),
		section("روند خلق", bundle.Render(KindMoods)),
		section("گفته‌های اخیر کاربر", bundle.Render(KindUserMessages)),
	)

	raw, err := s.model.Complete(ctx, dreamSystemPrompt, prompt, llm.WithTemperature(0.9))
	if err != nil {
		return nil, fmt.Errorf("generate dream: %w", err)
	}

	res := llm.Coerce(raw, func() dreamDraft { return fallbackDream(raw) }, validateDreamDraft)
	if res.Fallback {
		incr(s.metrics, metrics.CounterCoerceFallback)
		slog.Info("dream fell back to raw text", "user_id", owner, "reason", res.Reason)
	}

	testNames := make([]string, 0, len(bundle.Tests))
	for _, t := range bundle.Tests {
		testNames = append(testNames, t.TestName)
	}

	dream = &models.DreamRecord{
		ID:             models.NewID(),
		UserID:         owner,
		Title:          res.Value.Title,
		Content:        res.Value.Content,
		Interpretation: res.Value.Interpretation,
		Inspiration:    res.Value.Inspiration,
		SourceData: map[string]any{
			"tests":         testNames,
			"test_count":    len(bundle.Tests),
			"mood_count":    len(bundle.Moods),
			"message_count": len(bundle.UserMessages),
			"avg_score":     avgScore,
			"avg_sentiment": avgSentiment,
		},
		MoodContext: mood,
		CreatedAt:   models.Now(),
	}

	if err := s.store.CreateDreamRecord(ctx, *dream); err != nil {
		return nil, fmt.Errorf("generate dream: %w", err)
	}

	slog.Info("dream generated", "user_id", owner, "dream_id", dream.ID, "mood", mood)
	return dream, nil
}

func fallbackDream(raw string) dreamDraft {
	return dreamDraft{
		Title:          "رویای بی‌نام",
		Content:        strings.TrimSpace(raw),
		Interpretation: "تفسیری برای این رویا در دسترس نیست.",
		Inspiration:    "به احساسی که این رویا در شما بیدار می‌کند توجه کنید.",
	}
}

// MoodContextFor labels a bundle from its mood scores, message sentiment and
// test scores. It also returns the averages it used.
func MoodContextFor(b *ContextBundle, lex *lexicon.Lexicon) (models.MoodContext, float64, float64) {
	samples := make([]float64, 0, len(b.Moods)+len(b.UserMessages))
	for _, m := range b.Moods {
		samples = append(samples, (m.Score-5.5)/4.5)
	}
	for _, m := range b.UserMessages {
		samples = append(samples, lex.Sentiment(m.Content))
	}

	if len(samples) == 0 && len(b.Tests) == 0 {
		return models.MoodUnclear, 0, neutralScore
	}

	avgSentiment := mean(samples, 0)
	scores := make([]float64, 0, len(b.Tests))
	for _, t := range b.Tests {
		scores = append(scores, t.Score)
	}
	avgScore := mean(scores, neutralScore)

	switch {
	case avgSentiment >= positiveSentiment && avgScore >= positiveScore:
		return models.MoodPositive, avgSentiment, avgScore
	case avgSentiment <= negativeSentiment || avgScore < negativeScore:
		return models.MoodNegative, avgSentiment, avgScore
	default:
		return models.MoodBalanced, avgSentiment, avgScore
	}
}

func mean(xs []float64, empty float64) float64 {
	if len(xs) == 0 {
		return empty
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// AnalyzePatterns finds the most frequent symbols across the user's recent
// dreams, asks the model to interpret them, and stores the patterns.
// A user without dreams gets an empty result and no model call.
func (s *DreamService) AnalyzePatterns(ctx context.Context, userID string) (patterns []models.DreamPattern, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, metrics.OpPatterns, start, err) }()

	owner := ownerID(userID)
	dreams, err := s.store.RecentDreamRecords(ctx, owner, patternDreamLimit)
	if err != nil {
		return nil, fmt.Errorf("analyze dreams: %w", err)
	}
	if len(dreams) == 0 {
		return []models.DreamPattern{}, nil
	}

	contents := make([]string, len(dreams))
	for i, d := range dreams {
		contents[i] = d.Content
	}
	symbols := ExtractSymbols(contents, topSymbols)
	if len(symbols) == 0 {
		return []models.DreamPattern{}, nil
	}

	raw, err := s.model.Complete(ctx, patternSystemPrompt, renderSymbols(symbols))
	if err != nil {
		return nil, fmt.Errorf("analyze dreams: %w", err)
	}

	res := llm.Coerce(raw, func() patternDraft { return patternDraft{} }, nil)
	if res.Fallback {
		incr(s.metrics, metrics.CounterCoerceFallback)
		slog.Info("dream pattern analysis fell back", "user_id", owner, "reason", res.Reason)
	}

	bySymbol := make(map[string]symbolDraft, len(res.Value.Patterns))
	for _, p := range res.Value.Patterns {
		bySymbol[lexicon.Normalize(strings.TrimSpace(p.Symbol))] = p
	}

	now := models.Now()
	patterns = make([]models.DreamPattern, 0, len(symbols))
	for _, sym := range symbols {
		draft := bySymbol[sym.Symbol]

		meaning := strings.TrimSpace(draft.Meaning)
		if meaning == "" {
			meaning = defaultSymbolMeaning
		}

		var sentiment float64
		if draft.Sentiment != nil {
			sentiment = models.Clamp(*draft.Sentiment, -1, 1)
		} else {
			sentiment = s.symbolSentiment(sym.Symbol, contents)
		}

		related := draft.RelatedTests
		if related == nil {
			related = []string{}
		}

		patterns = append(patterns, models.DreamPattern{
			ID:           models.NewID(),
			UserID:       owner,
			Symbol:       sym.Symbol,
			Frequency:    sym.Count,
			Meaning:      meaning,
			Sentiment:    sentiment,
			RelatedTests: related,
			CreatedAt:    now,
		})
	}

	if err := s.store.CreateDreamPatterns(ctx, patterns); err != nil {
		return nil, fmt.Errorf("analyze dreams: %w", err)
	}

	slog.Info("dream patterns analyzed", "user_id", owner, "dreams", len(dreams), "patterns", len(patterns))
	return patterns, nil
}

// symbolSentiment scores the dreams that mention symbol with the lexicon.
func (s *DreamService) symbolSentiment(symbol string, contents []string) float64 {
	var matching []string
	for _, c := range contents {
		if slices.Contains(lexicon.Tokenize(c), symbol) {
			matching = append(matching, c)
		}
	}
	return models.Clamp(s.lex.Sentiment(strings.Join(matching, " ")), -1, 1)
}

// ExtractSymbols counts letter/digit tokens longer than three runes across
// texts and returns the n most frequent, ties broken lexically.
func ExtractSymbols(texts []string, n int) []SymbolCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range lexicon.Tokenize(text) {
			if utf8.RuneCountInString(tok) >= minSymbolRunes {
				counts[tok]++
			}
		}
	}

	out := make([]SymbolCount, 0, len(counts))
	for sym, c := range counts {
		out = append(out, SymbolCount{Symbol: sym, Count: c})
	}
	slices.SortFunc(out, func(a, b SymbolCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

func renderSymbols(symbols []SymbolCount) string {
	lines := make([]string, len(symbols))
	for i, s := range symbols {
		lines[i] = fmt.Sprintf("- %s (%d بار)", s.Symbol, s.Count)
	}
	return section("نمادهای پرتکرار", strings.Join(lines, "\n"))
}
