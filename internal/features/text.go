package features

import (
	"context"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/analysis/sentiment"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
)

// TextExtractor scores each filing's MD&A tone and Risk Factors density
// from its primary document. riskScoreDelta is the change in risk score
// against the prior comparable filing when both were scored.
type TextExtractor struct {
	Documents DocumentSource
	Log       *zap.Logger
}

func (x *TextExtractor) Name() string { return "text" }

func (x *TextExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := rows[i].Filing
		url := f.DocumentURL()
		if url == "" {
			log.Debug("no primary document", zap.String("filing", f.Key().String()))
			continue
		}
		doc, err := x.Documents.FilingText(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("filing document unavailable",
				zap.String("filing", f.Key().String()), zap.String("url", url), zap.Error(err))
			continue
		}

		fv := &rows[i].Features
		if doc.MDA != "" {
			s := sentiment.ScoreSection(doc.MDA)
			fv.SetNum(FeatSentiment, s.Value)
			fv.SetNum(FeatSentimentConfidence, s.Confidence)
			ensureReal(fv)
		}
		if risk, ok := sentiment.RiskScore(doc.RiskFactors); ok {
			fv.SetNum(FeatRiskScore, risk)
			ensureReal(fv)
		}
	}

	prior := priorIndex(Records(rows))
	for i := range rows {
		if prior[i] < 0 {
			continue
		}
		cur, ok := rows[i].Features.Num(FeatRiskScore)
		if !ok {
			continue
		}
		prev, ok := rows[prior[i]].Features.Num(FeatRiskScore)
		if !ok {
			continue
		}
		rows[i].Features.SetNum(FeatRiskDelta, cur-prev)
	}
	return nil
}
