package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func lotExpiring(id int64, number string, days int, qty int) Lot {
	return Lot{
		ID:                id,
		ProductID:         1,
		LotNumber:         number,
		ExpiryDate:        now.AddDate(0, 0, days),
		QuantityAvailable: qty,
	}
}

func TestSortFEFO(t *testing.T) {
	lots := []Lot{
		lotExpiring(1, "L-C", 60, 5),
		lotExpiring(2, "L-A", 10, 5),
		lotExpiring(3, "L-B", 10, 5),
	}
	SortFEFO(lots)
	assert.Equal(t, "L-A", lots[0].LotNumber)
	assert.Equal(t, "L-B", lots[1].LotNumber, "equal expiry breaks on lot number")
	assert.Equal(t, "L-C", lots[2].LotNumber)
}

func TestAutoSelectFEFO(t *testing.T) {
	t.Run("picks inside window nearest first", func(t *testing.T) {
		lots := []Lot{
			lotExpiring(1, "FAR", 200, 5),
			lotExpiring(2, "NEAR", 15, 5),
			lotExpiring(3, "MID", 45, 5),
		}
		picked, err := AutoSelectFEFO(lots, now, 90, 5)
		require.NoError(t, err)
		require.Len(t, picked, 2)
		assert.Equal(t, "NEAR", picked[0].LotNumber)
		assert.Equal(t, "MID", picked[1].LotNumber)
	})

	t.Run("caps at max lots", func(t *testing.T) {
		lots := make([]Lot, 0, 8)
		for i := 0; i < 8; i++ {
			lots = append(lots, lotExpiring(int64(i+1), "L", 10+i, 2))
		}
		picked, err := AutoSelectFEFO(lots, now, 90, 5)
		require.NoError(t, err)
		assert.Len(t, picked, 5)
	})

	t.Run("skips expired and empty lots", func(t *testing.T) {
		lots := []Lot{
			lotExpiring(1, "EXPIRED", -1, 5),
			lotExpiring(2, "TODAY", 0, 5),
			lotExpiring(3, "EMPTY", 20, 0),
		}
		_, err := AutoSelectFEFO(lots, now, 90, 5)
		assert.ErrorIs(t, err, ErrNoLotsInWindow)
	})

	t.Run("nothing in window", func(t *testing.T) {
		lots := []Lot{lotExpiring(1, "FAR", 120, 5)}
		_, err := AutoSelectFEFO(lots, now, 90, 5)
		assert.ErrorIs(t, err, ErrNoLotsInWindow)
	})

	t.Run("boundary day is included", func(t *testing.T) {
		lots := []Lot{lotExpiring(1, "EDGE", 90, 5)}
		picked, err := AutoSelectFEFO(lots, now, 90, 5)
		require.NoError(t, err)
		assert.Len(t, picked, 1)
	})
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(0, 10))
	assert.Equal(t, 1, ClampQuantity(-5, 10))
	assert.Equal(t, 10, ClampQuantity(25, 10))
	assert.Equal(t, 7, ClampQuantity(7, 10))
}

func TestExpiryStatusAt(t *testing.T) {
	assert.Equal(t, ExpiryStatusExpired, lotExpiring(1, "A", -1, 1).ExpiryStatusAt(now))
	assert.Equal(t, ExpiryStatusExpired, lotExpiring(1, "A", 0, 1).ExpiryStatusAt(now))
	assert.Equal(t, ExpiryStatusCritical, lotExpiring(1, "A", 15, 1).ExpiryStatusAt(now))
	assert.Equal(t, ExpiryStatusWarning, lotExpiring(1, "A", 60, 1).ExpiryStatusAt(now))
	assert.Equal(t, ExpiryStatusOK, lotExpiring(1, "A", 120, 1).ExpiryStatusAt(now))
}
