package filldist

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantClampsToRange(t *testing.T) {
	assert.Equal(t, 100.0, Constant{Rate: 150}.Sample(nil))
	assert.Equal(t, 0.0, Constant{Rate: -10}.Sample(nil))
	assert.Equal(t, 42.0, Constant{Rate: 42}.Sample(nil))
}

func TestNormalNilRngReturnsMean(t *testing.T) {
	n := Normal{Mean: 60, StdDev: 5}
	assert.Equal(t, 60.0, n.Sample(nil))
}

func TestNormalClampsToRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := Normal{Mean: 200, StdDev: 1}
	for i := 0; i < 50; i++ {
		v := n.Sample(rng)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}
