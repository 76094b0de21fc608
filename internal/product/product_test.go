package product

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantitiesArithmetic(t *testing.T) {
	a := Quantities{PPC: 10, Premium: 2, OPC: 1}
	b := Quantities{PPC: 4, Premium: 3, OPC: 1}

	sum := a.Add(b)
	require.Equal(t, Quantities{PPC: 14, Premium: 5, OPC: 2}, sum)

	diff := a.Sub(b)
	require.Equal(t, Quantities{PPC: 6, Premium: -1, OPC: 0}, diff)
	require.Equal(t, Quantities{PPC: 6, Premium: 0, OPC: 0}, diff.Clamp())
}

func TestQuantitiesGetSet(t *testing.T) {
	var q Quantities
	for i, typ := range Types {
		q.Set(typ, float64(i+1))
	}
	require.Equal(t, 1.0, q.Get(TypePPC))
	require.Equal(t, 2.0, q.Get(TypePremium))
	require.Equal(t, 3.0, q.Get(TypeOPC))
	require.Equal(t, 0.0, q.Get(Type("UNKNOWN")))
}

func TestIsZeroWithinEpsilon(t *testing.T) {
	require.True(t, Quantities{}.IsZero())
	require.True(t, Quantities{PPC: 0.009, Premium: -0.009}.IsZero())
	require.False(t, Quantities{OPC: 0.02}.IsZero())
}

func TestBagsConversion(t *testing.T) {
	q := Quantities{PPC: 10, Premium: 0.5}
	require.Equal(t, 210.0, q.Bags())
}
