package fee

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalc(t *testing.T) {
	tt := []struct {
		name   string
		amount uint64
		want   uint64
	}{
		{"zero", 0, 0},
		{"below one unit of fee", 999, 0},
		{"one unit", 1000, 1},
		{"rounds down", 1999, 1},
		{"ten bps of a million", 1_000_000, 1000},
		{"max amount", math.MaxUint64, math.MaxUint64 / 1000},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calc(tc.amount)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFundingAmount(t *testing.T) {
	got, err := FundingAmount(900_000)
	require.NoError(t, err)
	require.Equal(t, uint64(900_000+900), got)

	// Funding the max offering cannot be represented.
	_, err = FundingAmount(math.MaxUint64)
	require.Error(t, err)
}

// TestEscrowAlwaysCoversNextFee drives random partial-fill sequences against
// a freshly funded escrow and checks the balance never falls short of the
// amount plus fee owed on the next fill.
func TestEscrowAlwaysCoversNextFee(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		offering := rng.Uint64()
		if offering == 0 {
			offering = 1
		}
		balance, err := FundingAmount(offering)
		if err != nil {
			// offering + fee not representable; Create would reject it.
			continue
		}

		for offering > 0 {
			amountGiven := rng.Uint64()%offering + 1
			levied, err := Calc(amountGiven)
			require.NoError(t, err)

			require.GreaterOrEqual(t, balance, amountGiven+levied,
				"escrow short: offering=%d amount=%d fee=%d balance=%d",
				offering, amountGiven, levied, balance)

			balance -= amountGiven + levied
			offering -= amountGiven
		}
	}
}
