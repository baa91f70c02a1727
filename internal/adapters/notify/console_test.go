package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

func sampleResultSet() *domain.ResultSet {
	m := domain.Market{
		ConditionID: "0xabc",
		Question:    "Will the Lakers win tonight?",
		Outcomes: [2]domain.Outcome{
			{TokenID: "111", Side: domain.SideYes},
			{TokenID: "222", Side: domain.SideNo},
		},
	}
	return &domain.ResultSet{
		CycleID:    "11112222-3333-4444-5555-666677778888",
		ComputedAt: time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
		Health:     []domain.ServiceHealth{domain.HealthOK},
		Results: []domain.PricingResult{
			{
				Market:  m,
				Outcome: m.Outcomes[0],
				Status:  domain.StatusOK,
				BestBid: 0.54, BestAsk: 0.55,
				PHat:  0.60,
				Price: domain.EffectivePrice{Raw: 0.55, Eff: 0.5528},
				Edge:  0.0472, EVPerUSD: 0.0854, ROIPct: 15.45,
				Stake: 150,
				RiskFlags: []domain.RiskFlag{
					{Flag: "injury_news", Severity: "warning", Detail: "starter questionable"},
				},
			},
			{
				Market:  m,
				Outcome: m.Outcomes[1],
				Status:  domain.StatusFiltered,
				Reason:  domain.ReasonMinEdge,
				BestBid: 0.45, BestAsk: 0.46,
				PHat: 0.40,
			},
		},
	}
}

func TestConsolePublishTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	require.NoError(t, c.Publish(context.Background(), sampleResultSet()))
	out := buf.String()

	assert.Contains(t, out, "cycle 11112222")
	assert.Contains(t, out, "Will the Lakers win tonight?")
	assert.Contains(t, out, "$150.00")
	assert.Contains(t, out, "filtered:min_edge")
	assert.Contains(t, out, "injury_news")
	assert.NotContains(t, out, "DEGRADED")
}

func TestConsolePublishCompact(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	require.NoError(t, c.Publish(context.Background(), sampleResultSet()))
	out := buf.String()

	assert.Contains(t, out, "bet:1")
	assert.Contains(t, out, "filtered:1")
	assert.Contains(t, out, "$150.00")
	// Una sola línea en modo compacto
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestConsolePublishDegradedBanner(t *testing.T) {
	rs := sampleResultSet()
	rs.Health = []domain.ServiceHealth{domain.HealthFeedDegraded}

	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	require.NoError(t, c.Publish(context.Background(), rs))
	assert.Contains(t, buf.String(), "DEGRADED: feed_degraded")
}

func TestMarketLabel(t *testing.T) {
	long := domain.Market{
		ConditionID: "0xabc",
		Question:    "Will the Denver Nuggets beat the Boston Celtics?",
	}
	assert.Equal(t, "Will the Denver Nuggets beat th...", marketLabel(long))

	// Sin pregunta se usa el principio del condition ID
	unnamed := domain.Market{ConditionID: "0x0123456789abcdef0123456789abcdef"}
	assert.Equal(t, "0x0123456789abcdef01...", marketLabel(unnamed))
}

func TestConsolePublishEmpty(t *testing.T) {
	rs := &domain.ResultSet{
		CycleID:    "deadbeef-0000-0000-0000-000000000000",
		ComputedAt: time.Now(),
		Health:     []domain.ServiceHealth{domain.HealthOK},
	}

	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	require.NoError(t, c.Publish(context.Background(), rs))
	assert.Contains(t, buf.String(), "no tracked markets")
}
