package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("valid money", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(99.99), EUR)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(99.99)))
		assert.Equal(t, EUR, m.Currency())
	})

	t.Run("empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(1), "")
		require.Error(t, err)
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoneyEURFromFloat(100.50)
	b := NewMoneyEURFromFloat(49.50)

	t.Run("add", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromInt(150)))
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.True(t, diff.Amount().Equal(decimal.NewFromInt(51)))
	})

	t.Run("currency mismatch", func(t *testing.T) {
		usd, _ := NewMoneyFromFloat(10, USD)
		_, err := a.Add(usd)
		require.Error(t, err)
		_, err = a.Subtract(usd)
		require.Error(t, err)
	})

	t.Run("negate", func(t *testing.T) {
		neg := a.Negate()
		assert.True(t, neg.IsNegative())
		assert.True(t, neg.Abs().Equals(a))
	})
}

func TestCeilToCents(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"exact cents untouched", "72.98", "72.98"},
		{"rounds up not half-even", "72.975", "72.98"},
		{"tiny fraction rounds up", "10.0001", "10.01"},
		{"whole number untouched", "100", "100"},
		{"negative rounds toward zero", "-72.975", "-72.97"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := decimal.NewFromString(tc.in)
			require.NoError(t, err)
			want, err := decimal.NewFromString(tc.want)
			require.NoError(t, err)
			assert.True(t, CeilToCents(in).Equal(want), "got %s", CeilToCents(in))
		})
	}
}

func TestMoney_CeilToCents(t *testing.T) {
	m, err := NewMoneyEURFromString("347.50")
	require.NoError(t, err)
	vat := m.CalculatePercentage(decimal.NewFromInt(21)).CeilToCents()
	assert.Equal(t, "72.98", vat.StringFixed(2))
}

func TestMoney_Comparisons(t *testing.T) {
	small := NewMoneyEURFromFloat(10)
	big := NewMoneyEURFromFloat(20)

	lt, err := small.LessThan(big)
	require.NoError(t, err)
	assert.True(t, lt)

	gt, err := big.GreaterThan(small)
	require.NoError(t, err)
	assert.True(t, gt)

	lte, err := small.LessThanOrEqual(small)
	require.NoError(t, err)
	assert.True(t, lte)
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := NewMoneyEURFromFloat(1234.56)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equals(decoded))
}

func TestMoney_Scan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("42.42"))
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(42.42)))
	assert.Equal(t, DefaultCurrency, m.Currency())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
}
