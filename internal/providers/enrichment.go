package providers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/surpluscoord/control-plane/internal/domain"
)

// Classifier is the narrow external dependency a real EnrichmentProvider
// wraps (an LLM or ML classification service), grounded on the teacher's
// LLMClient interface. Left unimplemented here since no concrete LLM SDK
// appears in the corpus; HeuristicEnrichmentProvider works with or without
// one.
type Classifier interface {
	Classify(ctx context.Context, title, description, qualityNotes string) (EnrichmentResult, error)
}

// riskKeywords maps a free-text keyword to the risk flag it contributes,
// used by the heuristic fallback when no Classifier is configured or the
// configured one errors.
var riskKeywords = map[string]string{
	"expired":    "expiration_mentioned",
	"expire":     "expiration_mentioned",
	"damaged":    "damage_mentioned",
	"dented":     "damage_mentioned",
	"recall":     "recall_mentioned",
	"recalled":   "recall_mentioned",
	"moldy":      "spoilage_mentioned",
	"spoiled":    "spoilage_mentioned",
	"unsealed":   "tamper_risk",
	"opened":     "tamper_risk",
}

// HeuristicEnrichmentProvider is the degraded-capable EnrichmentProvider: it
// delegates to an optional Classifier and falls back to a keyword scan over
// the listing's title/description/quality notes, grounded on the teacher's
// LLMClient + degraded-fallback discipline in
// internal/infrastructure/llm/client.go.
type HeuristicEnrichmentProvider struct {
	classifier Classifier
	logger     *slog.Logger
}

func NewHeuristicEnrichmentProvider(classifier Classifier, logger *slog.Logger) *HeuristicEnrichmentProvider {
	return &HeuristicEnrichmentProvider{classifier: classifier, logger: logger.With("component", "enrichment_provider")}
}

func (p *HeuristicEnrichmentProvider) Enrich(ctx context.Context, listing *domain.SurplusListing) (EnrichmentResult, error) {
	if p.classifier != nil {
		result, err := p.classifier.Classify(ctx, listing.Title, listing.Description, listing.QualityNotes)
		if err == nil {
			result.Status = domain.EnrichmentStatusCompleted
			return result, nil
		}
		p.logger.Warn("classifier call failed, using heuristic fallback", "listing_id", listing.ID, "error", err)
	}

	text := strings.ToLower(listing.Title + " " + listing.Description + " " + listing.QualityNotes)
	flags := make([]string, 0)
	for keyword, flag := range riskKeywords {
		if strings.Contains(text, keyword) && !containsString(flags, flag) {
			flags = append(flags, flag)
		}
	}

	return EnrichmentResult{
		NormalizedCategory: listing.Category,
		RiskFlags:          flags,
		QualitySummary:     listing.QualityNotes,
		Confidence:         0.4,
		Status:             domain.EnrichmentStatusDegraded,
	}, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
