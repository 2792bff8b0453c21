package broker

import (
	"fmt"
	"sort"
	"strings"
)

type HoldingSummary struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	AvgPrice   float64 `json:"avg_price"`
	LastPrice  float64 `json:"last_price"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"`
}

func (h HoldingSummary) Value() float64 { return h.LastPrice * h.Quantity }

type PositionSummary struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avg_price"`
	LastPrice float64 `json:"last_price"`
	PnL       float64 `json:"pnl"`
	Product   string  `json:"product"`
}

type PortfolioSummary struct {
	Holdings struct {
		TotalValue float64          `json:"total_value"`
		TotalPnL   float64          `json:"total_pnl"`
		Count      int              `json:"count"`
		Items      []HoldingSummary `json:"items"`
	} `json:"holdings"`
	Positions struct {
		NetPnL float64           `json:"net_pnl"`
		DayPnL float64           `json:"day_pnl"`
		Count  int               `json:"count"`
		Items  []PositionSummary `json:"items"`
	} `json:"positions"`
}

const topHoldings = 10

// Summarize aggregates raw holdings and positions. Positions with zero net
// quantity are closed and only contribute to P&L.
func Summarize(holdings []Holding, positions *Positions) *PortfolioSummary {
	s := &PortfolioSummary{}

	for _, h := range holdings {
		item := HoldingSummary{
			Symbol:    h.TradingSymbol,
			Quantity:  h.Quantity,
			AvgPrice:  h.AveragePrice,
			LastPrice: h.LastPrice,
			PnL:       h.PnL,
		}
		if h.AveragePrice > 0 {
			item.PnLPercent = (h.LastPrice - h.AveragePrice) / h.AveragePrice * 100
		}
		s.Holdings.Items = append(s.Holdings.Items, item)
		s.Holdings.TotalValue += item.Value()
		s.Holdings.TotalPnL += h.PnL
	}
	s.Holdings.Count = len(s.Holdings.Items)

	if positions != nil {
		for _, p := range positions.Net {
			s.Positions.NetPnL += p.PnL
			if p.Quantity == 0 {
				continue
			}
			s.Positions.Items = append(s.Positions.Items, PositionSummary{
				Symbol:    p.TradingSymbol,
				Quantity:  p.Quantity,
				AvgPrice:  p.AveragePrice,
				LastPrice: p.LastPrice,
				PnL:       p.PnL,
				Product:   p.Product,
			})
		}
		for _, p := range positions.Day {
			s.Positions.DayPnL += p.PnL
		}
	}
	s.Positions.Count = len(s.Positions.Items)

	return s
}

// FormatForLLM renders the summary as markdown for the model.
func FormatForLLM(s *PortfolioSummary) string {
	var b strings.Builder

	b.WriteString("# Portfolio Summary\n\n")
	fmt.Fprintf(&b, "## Holdings (%d stocks)\n", s.Holdings.Count)
	fmt.Fprintf(&b, "- Total Value: ₹%.2f\n", s.Holdings.TotalValue)
	fmt.Fprintf(&b, "- Total P&L: ₹%.2f\n\n", s.Holdings.TotalPnL)

	if len(s.Holdings.Items) > 0 {
		items := append([]HoldingSummary(nil), s.Holdings.Items...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].Value() > items[j].Value() })
		if len(items) > topHoldings {
			items = items[:topHoldings]
		}
		b.WriteString("### Top Holdings:\n")
		for _, h := range items {
			fmt.Fprintf(&b, "- **%s**: %s shares @ ₹%.2f (Avg: ₹%.2f, P&L: ₹%.2f / %.2f%%)\n",
				h.Symbol, formatQty(h.Quantity), h.LastPrice, h.AvgPrice, h.PnL, h.PnLPercent)
		}
	}

	fmt.Fprintf(&b, "\n## Active Positions (%d)\n", s.Positions.Count)
	fmt.Fprintf(&b, "- Net P&L: ₹%.2f\n", s.Positions.NetPnL)
	fmt.Fprintf(&b, "- Day P&L: ₹%.2f\n", s.Positions.DayPnL)

	if len(s.Positions.Items) > 0 {
		b.WriteString("\n### Current Positions:\n")
		for _, p := range s.Positions.Items {
			fmt.Fprintf(&b, "- **%s** (%s): %s @ ₹%.2f (Avg: ₹%.2f, P&L: ₹%.2f)\n",
				p.Symbol, p.Product, formatQty(p.Quantity), p.LastPrice, p.AvgPrice, p.PnL)
		}
	}

	return b.String()
}

func formatQty(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return fmt.Sprintf("%g", q)
}
