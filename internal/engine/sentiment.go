package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

const maxSentimentArticles = 50

// eventMultipliers amplify article weight when the headline mentions
// a category of market-moving event (spec §4.1).
var eventMultipliers = map[string]float64{
	"earnings":   2.0,
	"merger":     2.5,
	"acquisition": 2.5,
	"regulatory": 2.0,
	"sec":        2.0,
	"lawsuit":    1.5,
	"litigation": 1.5,
}

type SentimentEngine struct {
	// Classify optionally scores one article's text into [-1, 1]. When
	// nil, a small lexicon-based fallback is used so the engine is
	// usable without an external NLP classifier (spec's optional
	// "external NLP classifier").
	Classify func(text string) float64
}

func NewSentimentEngine() *SentimentEngine {
	return &SentimentEngine{Classify: lexiconSentiment}
}

func (e *SentimentEngine) Name() Name { return Sentiment }

func (e *SentimentEngine) Analyze(ctx context.Context, in Input) (Result, error) {
	if len(in.News) == 0 {
		return Result{}, insufficientData(in.Symbol, "no news items available")
	}
	articles := in.News
	if len(articles) > maxSentimentArticles {
		articles = articles[:maxSentimentArticles]
	}

	now := latestTimestamp(articles)
	classify := e.Classify
	if classify == nil {
		classify = lexiconSentiment
	}

	var weightedSum, totalWeight float64
	for _, a := range articles {
		titleScore := classify(a.Title)
		bodyScore := classify(a.Body)
		// titles weighted higher than bodies
		articleScore := 0.65*titleScore + 0.35*bodyScore

		ageHours := now.Sub(a.Timestamp).Hours()
		recencyWeight := math.Exp(-ageHours / 72) // 72h e-folding decay (half-life ~50h)
		eventMult := eventMultiplier(a.Title + " " + a.Body)

		w := recencyWeight * eventMult
		weightedSum += articleScore * w
		totalWeight += w
	}

	aggregate := 0.0
	if totalWeight > 0 {
		aggregate = weightedSum / totalWeight
	}

	buzz := abnormalBuzz(articles, now)

	score := aggregate * 3
	if buzz > 2 {
		// abnormal buzz amplifies the signal toward its existing direction
		score *= 1.2
		if score > 3 {
			score = 3
		}
		if score < -3 {
			score = -3
		}
	}

	// confidence scales with article count, saturating near 1.0
	confidence := clip01(1 - math.Exp(-float64(len(articles))/15.0))

	return Result{
		Signal:        BucketFromScore(score),
		RawConfidence: confidence,
		Metrics: map[string]float64{
			"aggregate_sentiment": aggregate,
			"article_count":       float64(len(articles)),
			"abnormal_buzz_ratio": buzz,
		},
		Reason: "recency- and event-weighted news sentiment",
	}, nil
}

func latestTimestamp(articles []market.NewsItem) time.Time {
	var latest time.Time
	for _, a := range articles {
		if a.Timestamp.After(latest) {
			latest = a.Timestamp
		}
	}
	if latest.IsZero() {
		return time.Now()
	}
	return latest
}

func eventMultiplier(text string) float64 {
	lower := strings.ToLower(text)
	mult := 1.0
	for keyword, m := range eventMultipliers {
		if strings.Contains(lower, keyword) && m > mult {
			mult = m
		}
	}
	return mult
}

// abnormalBuzz compares the article count in the trailing 24h to the
// average daily count over the full fetched window, per spec's
// "abnormal-buzz detection (article-volume spike vs trailing
// baseline)".
func abnormalBuzz(articles []market.NewsItem, now time.Time) float64 {
	if len(articles) == 0 {
		return 0
	}
	var recent int
	var oldestAge float64
	for _, a := range articles {
		age := now.Sub(a.Timestamp).Hours()
		if age <= 24 {
			recent++
		}
		if age > oldestAge {
			oldestAge = age
		}
	}
	days := oldestAge / 24
	if days < 1 {
		days = 1
	}
	baseline := float64(len(articles)) / days
	if baseline == 0 {
		return 0
	}
	return float64(recent) / baseline
}

// lexiconSentiment is a minimal bag-of-words fallback classifier used
// when no external NLP classifier is configured.
func lexiconSentiment(text string) float64 {
	lower := strings.ToLower(text)
	positive := []string{"beat", "surge", "record", "upgrade", "growth", "strong", "profit", "outperform", "raise"}
	negative := []string{"miss", "plunge", "downgrade", "decline", "weak", "loss", "lawsuit", "recall", "cut", "investigation"}
	score := 0.0
	for _, w := range positive {
		if strings.Contains(lower, w) {
			score += 1
		}
	}
	for _, w := range negative {
		if strings.Contains(lower, w) {
			score -= 1
		}
	}
	if score == 0 {
		return 0
	}
	return clip01(math.Abs(score)/3) * sign(score)
}
