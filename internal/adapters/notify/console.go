package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Console implementa ports.Publisher.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un publisher que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un publisher para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Publish imprime el result set en el modo configurado.
func (c *Console) Publish(_ context.Context, rs *domain.ResultSet) error {
	if rs.Degraded() {
		c.printHealthBanner(rs)
	}

	if len(rs.Results) == 0 {
		fmt.Fprintf(c.out, "[%s] cycle %s: no tracked markets\n",
			rs.ComputedAt.Format("15:04:05"), shortCycle(rs.CycleID))
		return nil
	}

	if c.table {
		c.printFull(rs)
	} else {
		c.printCompact(rs)
	}
	return nil
}

// printHealthBanner avisa de upstreams degradados antes de los resultados.
func (c *Console) printHealthBanner(rs *domain.ResultSet) {
	labels := make([]string, 0, len(rs.Health))
	for _, h := range rs.Health {
		if h != domain.HealthOK {
			labels = append(labels, string(h))
		}
	}
	fmt.Fprintf(c.out, "\n  !! DEGRADED: %s — results may be stale or partial\n",
		strings.Join(labels, ", "))
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(rs *domain.ResultSet) {
	actionable, filtered, noData := countByStatus(rs.Results)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d outcomes → bet:%d filtered:%d nodata:%d",
		rs.ComputedAt.Format("15:04:05"), len(rs.Results), actionable, filtered, noData)

	shown := 0
	for _, r := range rs.Results {
		if shown >= 4 {
			break
		}
		if !r.Actionable() {
			continue
		}
		fmt.Fprintf(&sb, " | %s %s p̂%.3f e%.3f $%.2f",
			compactName(r.Market.Question, 25), r.Outcome.Side,
			r.PHat, r.Edge, r.Stake)
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla completa con todos los outcomes del ciclo,
// incluidos los problemáticos con su razón.
func (c *Console) printFull(rs *domain.ResultSet) {
	actionable, filtered, noData := countByStatus(rs.Results)

	fmt.Fprintf(c.out, "\n[%s] cycle %s — %d outcomes, bet:%d filtered:%d nodata:%d\n",
		rs.ComputedAt.Format("15:04:05"), shortCycle(rs.CycleID),
		len(rs.Results), actionable, filtered, noData)

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Side", "Bid", "Ask", "Eff", "p̂", "Edge", "EV/$", "ROI%", "Stake", "Age", "Status")

	for _, r := range rs.Results {
		table.Append(
			marketLabel(r.Market),
			string(r.Outcome.Side),
			priceLabel(r.BestBid),
			priceLabel(r.BestAsk),
			priceLabel(r.Price.Eff),
			probLabel(r.PHat, r.Status),
			fmt.Sprintf("%+.4f", r.Edge),
			fmt.Sprintf("%+.4f", r.EVPerUSD),
			fmt.Sprintf("%+.2f", r.ROIPct),
			stakeLabel(r),
			ageLabel(r.BookAge),
			statusLabel(r),
		)
	}

	table.Render()

	fmt.Fprintln(c.out, "  Eff = ask tras fee y slippage | Edge = p̂ - eff | Stake = Kelly fraccional con cap")
	c.printRiskFlags(rs)
}

// printRiskFlags lista los flags de riesgo de los resultados accionables.
func (c *Console) printRiskFlags(rs *domain.ResultSet) {
	printed := false
	for _, r := range rs.Results {
		if !r.Actionable() || len(r.RiskFlags) == 0 {
			continue
		}
		if !printed {
			fmt.Fprintln(c.out, "\n  RISK FLAGS:")
			printed = true
		}
		for _, f := range r.RiskFlags {
			fmt.Fprintf(c.out, "  [%s] %s %s: %s\n",
				f.Severity, marketLabel(r.Market), f.Flag, f.Detail)
		}
	}
	if printed {
		fmt.Fprintln(c.out)
	}
}

// --- helpers ---

func countByStatus(results []domain.PricingResult) (actionable, filtered, noData int) {
	for _, r := range results {
		switch {
		case r.Actionable():
			actionable++
		case r.Status == domain.StatusFiltered:
			filtered++
		case r.Status == domain.StatusNoData:
			noData++
		}
	}
	return
}

func marketLabel(m domain.Market) string {
	return domain.TruncateQuestion(m.Question, m.ConditionID, 34)
}

func priceLabel(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", p)
}

func probLabel(p float64, status domain.ResultStatus) string {
	if status == domain.StatusNoData || p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", p)
}

func stakeLabel(r domain.PricingResult) string {
	if r.Stake <= 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", r.Stake)
}

func ageLabel(age time.Duration) string {
	if age <= 0 {
		return "-"
	}
	if age < time.Minute {
		return fmt.Sprintf("%.0fs", age.Seconds())
	}
	return fmt.Sprintf("%.1fm", age.Minutes())
}

func statusLabel(r domain.PricingResult) string {
	if r.Reason == domain.ReasonNone {
		return string(r.Status)
	}
	return fmt.Sprintf("%s:%s", r.Status, r.Reason)
}

func shortCycle(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
