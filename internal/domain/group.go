package domain

import "github.com/shopspring/decimal"

// Group is the ephemeral per-provider aggregation of eligible payments
// within one query scope. Totals are always recomputed from the member
// records, never stored.
type Group struct {
	ProviderID    string
	ProviderName  string
	ProviderEmail string
	// Payments in encounter order (payment date, then id).
	Payments []Payment
	// Tag alternates across groups for display differentiation only.
	Tag string
}

// Group display tags. Purely a UI hint; no domain meaning.
const (
	GroupTagEven = "even"
	GroupTagOdd  = "odd"
)

// TagForIndex returns the alternating display tag for a group position.
func TagForIndex(i int) string {
	if i%2 == 0 {
		return GroupTagEven
	}
	return GroupTagOdd
}

// TotalCount is the number of member payments.
func (g *Group) TotalCount() int { return len(g.Payments) }

// TotalAmount is the sum of member amounts, recomputed on every call.
func (g *Group) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range g.Payments {
		total = total.Add(g.Payments[i].Amount)
	}
	return total
}

// SplitByChannel partitions member payment ids into the card and bank
// channel sets used on the outbound notification.
func (g *Group) SplitByChannel() (card []string, bank []string) {
	for i := range g.Payments {
		if g.Payments[i].Channel() == ChannelBank {
			bank = append(bank, g.Payments[i].ID)
			continue
		}
		card = append(card, g.Payments[i].ID)
	}
	return card, bank
}
