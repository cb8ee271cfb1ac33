package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToSheets(t *testing.T) {
	total, err := ToSheets(2, 50, 500)
	require.NoError(t, err)
	require.Equal(t, int64(1050), total)

	total, err = ToSheets(0, 0, 500)
	require.NoError(t, err)
	require.Equal(t, int64(0), total)
}

func TestToSheetsRejectsNegatives(t *testing.T) {
	_, err := ToSheets(-1, 0, 500)
	require.Error(t, err)

	_, err = ToSheets(0, -1, 500)
	require.Error(t, err)

	_, err = ToSheets(1, 0, 0)
	require.Error(t, err)
}

func TestToDisplay(t *testing.T) {
	d := ToDisplay(1050, 500)
	require.Equal(t, DisplayStock{Reams: 2, Sheets: 50}, d)

	d = ToDisplay(499, 500)
	require.Equal(t, DisplayStock{Reams: 0, Sheets: 499}, d)

	d = ToDisplay(0, 500)
	require.Equal(t, DisplayStock{}, d)
}

func TestToDisplayZeroUnitKeepsRawSheets(t *testing.T) {
	d := ToDisplay(123, 0)
	require.Equal(t, DisplayStock{Reams: 0, Sheets: 123}, d)
}

func TestUnitsRoundTrip(t *testing.T) {
	cases := []struct {
		reams, sheets, perUnit int64
	}{
		{0, 0, 500},
		{1, 0, 500},
		{0, 499, 500},
		{3, 250, 500},
		{10, 99, 100},
	}
	for _, tc := range cases {
		total, err := ToSheets(tc.reams, tc.sheets, tc.perUnit)
		require.NoError(t, err)
		d := ToDisplay(total, tc.perUnit)
		require.Equal(t, tc.reams, d.Reams, "reams for %+v", tc)
		require.Equal(t, tc.sheets, d.Sheets, "sheets for %+v", tc)
	}
}
