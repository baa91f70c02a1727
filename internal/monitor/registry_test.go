package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

func makeMarket(conditionID, yesToken, noToken string) domain.Market {
	return domain.Market{
		ConditionID: conditionID,
		Question:    "q-" + conditionID,
		Outcomes: [2]domain.Outcome{
			{TokenID: yesToken, Side: domain.SideYes, FeeRateBps: 200},
			{TokenID: noToken, Side: domain.SideNo, FeeRateBps: 200},
		},
	}
}

func makeSnap(token string, seq int64) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		TokenID:    token,
		Bids:       []domain.BookLevel{{Price: 0.54, Size: 100}},
		Asks:       []domain.BookLevel{{Price: 0.55, Size: 100}},
		Seq:        seq,
		ReceivedAt: time.Now().UTC(),
	}
}

func TestRegistrySetMarketsDelta(t *testing.T) {
	r := NewRegistry()

	delta := r.SetMarkets([]domain.Market{
		makeMarket("c1", "t1y", "t1n"),
		makeMarket("c2", "t2y", "t2n"),
	})
	assert.Equal(t, Delta{Added: 2}, delta)
	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.TokenIDs(), 4)

	// c2 sale, c3 entra, c1 se queda
	delta = r.SetMarkets([]domain.Market{
		makeMarket("c1", "t1y", "t1n"),
		makeMarket("c3", "t3y", "t3n"),
	})
	assert.Equal(t, Delta{Added: 1, Removed: 1, Kept: 1}, delta)
	assert.True(t, delta.Changed())

	delta = r.SetMarkets(r.Markets())
	assert.False(t, delta.Changed())
}

func TestRegistryKeepsBooksAcrossDiscovery(t *testing.T) {
	r := NewRegistry()
	r.SetMarkets([]domain.Market{makeMarket("c1", "t1y", "t1n")})

	require.True(t, r.ApplyUpdate(makeSnap("t1y", 7)))

	// Re-discovery con el mismo mercado no borra el book
	r.SetMarkets([]domain.Market{makeMarket("c1", "t1y", "t1n"), makeMarket("c2", "t2y", "t2n")})
	require.NotNil(t, r.Book("t1y"))
	assert.Equal(t, int64(7), r.Book("t1y").Seq)

	// Un mercado eliminado pierde sus books
	r.SetMarkets([]domain.Market{makeMarket("c2", "t2y", "t2n")})
	assert.Nil(t, r.Book("t1y"))
}

func TestRegistryApplyUpdateSequenceOrder(t *testing.T) {
	r := NewRegistry()
	r.SetMarkets([]domain.Market{makeMarket("c1", "t1y", "t1n")})

	assert.True(t, r.ApplyUpdate(makeSnap("t1y", 7)))

	// Un update con seq menor llega tarde: se descarta y el book no retrocede
	assert.False(t, r.ApplyUpdate(makeSnap("t1y", 5)))
	assert.Equal(t, int64(7), r.Book("t1y").Seq)

	// seq duplicado tampoco se aplica
	assert.False(t, r.ApplyUpdate(makeSnap("t1y", 7)))

	assert.True(t, r.ApplyUpdate(makeSnap("t1y", 8)))
	assert.Equal(t, int64(8), r.Book("t1y").Seq)
}

func TestRegistryApplyUpdateConcurrentWriters(t *testing.T) {
	r := NewRegistry()
	r.SetMarkets([]domain.Market{makeMarket("c1", "t1y", "t1n")})

	// En modo degradado el feed y el poll del ciclo escriben a la vez.
	const writers = 4
	const perWriter = 2000

	var wg sync.WaitGroup
	for w := 1; w <= writers; w++ {
		wg.Add(1)
		go func(offset int64) {
			defer wg.Done()
			for seq := offset; seq <= writers*perWriter; seq += writers {
				r.ApplyUpdate(makeSnap("t1y", seq))
			}
		}(int64(w))
	}
	wg.Wait()

	// La secuencia publicada nunca retrocede: gana el snapshot de mayor seq
	require.NotNil(t, r.Book("t1y"))
	assert.Equal(t, int64(writers*perWriter), r.Book("t1y").Seq)
}

func TestRegistryApplyUpdateUntracked(t *testing.T) {
	r := NewRegistry()
	r.SetMarkets([]domain.Market{makeMarket("c1", "t1y", "t1n")})

	assert.False(t, r.ApplyUpdate(makeSnap("unknown", 1)))
	assert.False(t, r.ApplyUpdate(nil))
	assert.Nil(t, r.Book("unknown"))
}
