package conversion

import (
	"errors"
	"math"
	"testing"

	"dinar-ticker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTable = domain.RateTable{
	"EUR":  252,
	"USD":  228,
	"GBP":  295,
	"BTC":  15500000,
	"GOLD": 20000,
}

func TestConvertExampleTriangulation(t *testing.T) {
	got, err := Convert(domain.RateTable{"EUR": 252, "USD": 228}, 100, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 100.0*228/252, got, 1e-9)
	assert.Equal(t, "90.48", domain.FormatAmount(got, 2))
}

func TestConvertIdentityIsExact(t *testing.T) {
	amounts := []float64{0, 1, -3.75, 123456.789, 1e-12}
	for _, code := range []domain.Code{"EUR", "usd", "DZD", "ZZZ"} {
		for _, a := range amounts {
			for _, e := range []*Engine{New(), New(WithStrict(true))} {
				got, err := e.Convert(sampleTable, a, code, domain.NormalizeCode(string(code)))
				require.NoError(t, err)
				assert.Equal(t, a, got)
			}
		}
	}
}

func TestConvertIdentityCaseInsensitive(t *testing.T) {
	got, err := Convert(sampleTable, 42.123, "eur", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 42.123, got)
}

func TestConvertRoundTrip(t *testing.T) {
	codes := []domain.Code{"EUR", "USD", "GBP", "BTC", "GOLD", "DZD"}
	for _, from := range codes {
		for _, to := range codes {
			for _, a := range []float64{1, 100, 2500.5, -40} {
				there, err := Convert(sampleTable, a, from, to)
				require.NoError(t, err)
				back, err := Convert(sampleTable, there, to, from)
				require.NoError(t, err)
				assert.InDelta(t, a, back, math.Abs(a)*1e-9, "%s -> %s -> %s", from, to, from)
			}
		}
	}
}

func TestConvertBaseLegs(t *testing.T) {
	toBase, err := Convert(sampleTable, 504, "EUR", "DZD")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, toBase, 1e-12)

	fromBase, err := Convert(sampleTable, 2, "DZD", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 456.0, fromBase, 1e-12)
}

func TestConvertNegativeAmountsAreLinear(t *testing.T) {
	pos, err := Convert(sampleTable, 100, "EUR", "USD")
	require.NoError(t, err)
	neg, err := Convert(sampleTable, -100, "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, -pos, neg)
}

func TestConvertLenientFallback(t *testing.T) {
	got, err := Convert(sampleTable, 77.7, "ZZZ", "DZD")
	require.NoError(t, err)
	assert.Equal(t, 77.7, got)

	got, err = Convert(sampleTable, 10, "DZD", "ZZZ")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = Convert(domain.RateTable{"EUR": 0}, 5, "EUR", "DZD")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got, "non-positive rate falls back to 1.0")
}

func TestEngineOptions(t *testing.T) {
	e := New()
	assert.Equal(t, domain.BaseCurrency, e.Base())
	assert.False(t, e.Strict())

	e = New(WithBase("eur"), WithStrict(true))
	assert.Equal(t, domain.Code("EUR"), e.Base())
	assert.True(t, e.Strict())
}

func TestConvertStrictMissingRate(t *testing.T) {
	e := New(WithStrict(true))

	_, err := e.Convert(sampleTable, 1, "ZZZ", "DZD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateNotFound))

	var rnf *RateNotFoundError
	require.True(t, errors.As(err, &rnf))
	assert.Equal(t, domain.Code("ZZZ"), rnf.Code)
	assert.Equal(t, "rate unavailable for ZZZ", err.Error())

	_, err = e.Convert(sampleTable, 1, "EUR", "yyy")
	require.ErrorAs(t, err, &rnf)
	assert.Equal(t, domain.Code("YYY"), rnf.Code)
}

func TestConvertStrictRejectsNonFiniteAmounts(t *testing.T) {
	e := New(WithStrict(true))
	for _, a := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := e.Convert(sampleTable, a, "EUR", "USD")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	got, err := Convert(sampleTable, math.NaN(), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got), "lenient mode propagates NaN")
}

func TestCustomBase(t *testing.T) {
	e := New(WithBase("eur"))
	assert.Equal(t, domain.Code("EUR"), e.Base())

	table := domain.RateTable{"USD": 1.1, "DZD": 252}
	got, err := e.Convert(table, 10, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 11.0, got, 1e-12)
}

func TestRate(t *testing.T) {
	rate, err := New().Rate(sampleTable, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 228.0/252, rate, 1e-12)
}
