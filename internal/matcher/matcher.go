package matcher

import (
	"context"
	"math"
	"sort"

	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/storage"
)

// Service pairs a user's orders with opposite-role orders from other users
// whose time windows overlap.
type Service struct {
	Store storage.OrderStore
}

// Matches returns every pairing for identity, closest start times first.
// The result is never nil.
func (s *Service) Matches(ctx context.Context, identity models.Identity) ([]models.Match, error) {
	mine, err := s.Store.OrdersFor(ctx, identity)
	if err != nil {
		return nil, err
	}
	type scored struct {
		m    models.Match
		cost float64
	}
	scoredList := make([]scored, 0)
	others := map[models.Role][]models.StoredOrder{}
	for _, o := range mine {
		opp := opposite(o.Order.Role)
		cands, ok := others[opp]
		if !ok {
			if cands, err = s.Store.OrdersByRole(ctx, opp); err != nil {
				return nil, err
			}
			others[opp] = cands
		}
		for _, c := range cands {
			if c.Order.Identity == identity || !o.Order.Window.Overlaps(c.Order.Window) {
				continue
			}
			owner, customer := o, c
			if o.Order.Role == models.Customer {
				owner, customer = c, o
			}
			// cost = gap between the two requested start times
			cost := math.Abs(owner.Order.Window.Start.Sub(customer.Order.Window.Start).Seconds())
			scoredList = append(scoredList, scored{pair(owner, customer), cost})
		}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].cost < scoredList[j].cost })
	out := make([]models.Match, 0, len(scoredList))
	for _, sc := range scoredList {
		out = append(out, sc.m)
	}
	return out, nil
}

func opposite(r models.Role) models.Role {
	if r == models.Owner {
		return models.Customer
	}
	return models.Owner
}

// pair builds the match record; its window is the overlap of the two orders.
func pair(owner, customer models.StoredOrder) models.Match {
	start, end := owner.Order.Window.Start, owner.Order.Window.End
	if customer.Order.Window.Start.After(start) {
		start = customer.Order.Window.Start
	}
	if customer.Order.Window.End.Before(end) {
		end = customer.Order.Window.End
	}
	return models.Match{
		OwnerOrderID:    owner.ID,
		OwnerID:         owner.Order.Identity,
		CustomerOrderID: customer.ID,
		CustomerID:      customer.Order.Identity,
		OwnerAddress:    owner.Order.Address,
		CustomerAddress: customer.Order.Address,
		Start:           start,
		End:             end,
	}
}
