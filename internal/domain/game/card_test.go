package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	cards := Catalog()
	require.Len(t, cards, 8)

	total := 0
	for _, c := range cards {
		assert.Positive(t, c.Weight)
		assert.NotEmpty(t, c.Description)
		total += c.Weight
	}
	assert.Equal(t, 100, total)

	// mutating the copy must not change the catalog
	cards[0].Weight = 0
	assert.Equal(t, 15, Catalog()[0].Weight)
}

func TestParseCardType(t *testing.T) {
	ct, err := ParseCardType("shared_stone")
	require.NoError(t, err)
	assert.Equal(t, CardSharedStone, ct)

	_, err = ParseCardType("JOKER")
	assert.ErrorIs(t, err, ErrUnknownCard)
}

func TestDrawOne_FollowsWeights(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	counts := make(map[CardType]int)
	const draws = 20000
	for i := 0; i < draws; i++ {
		counts[DrawOne(rng)]++
	}

	for _, info := range Catalog() {
		got := float64(counts[info.Type]) / draws * 100
		assert.InDelta(t, float64(info.Weight), got, 2.0, "card %s", info.Type)
	}
}

func TestDrawTwo(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	hand := DrawTwo(rng)
	require.Len(t, hand, 2)
	for _, c := range hand {
		_, err := ParseCardType(string(c))
		assert.NoError(t, err)
	}
}
