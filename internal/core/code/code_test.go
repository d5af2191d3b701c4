package code

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/core/apperror"
)

func TestFormat(t *testing.T) {
	got, err := Format("PDK", 4, 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0001", got)

	got, err = Format("KT", 12, 2024, 9999)
	require.NoError(t, err)
	assert.Equal(t, "KT/12/2024/9999", got)
}

func TestFormat_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		abbr  string
		month int
		year  int
		seq   int
	}{
		{"lowercase abbreviation", "pdk", 4, 2025, 1},
		{"long abbreviation", "PDKX", 4, 2025, 1},
		{"month zero", "PDK", 0, 2025, 1},
		{"month 13", "PDK", 13, 2025, 1},
		{"five digit year", "PDK", 4, 10000, 1},
		{"sequence zero", "PDK", 4, 2025, 0},
		{"sequence overflow", "PDK", 4, 2025, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Format(tt.abbr, tt.month, tt.year, tt.seq)
			assert.True(t, apperror.Is(err, apperror.CodeValidation))
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, abbr := range []string{"KTG", "PDK", "SOP", "SM"} {
		for _, month := range []int{1, 9, 12} {
			for _, seq := range []int{1, 42, 999, 9999} {
				s, err := Format(abbr, month, 2025, seq)
				require.NoError(t, err)

				p, err := Parse(s)
				require.NoError(t, err)
				assert.Equal(t, Parts{Abbreviation: abbr, Month: month, Year: 2025, Sequence: seq}, p)
			}
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"PDK/4/2025/0001",
		"PDK/04/25/0001",
		"PDK/04/2025/1",
		"pdk/04/2025/0001",
		"P/04/2025/0001",
		"PDK-04-2025-0001",
		"PDK/13/2025/0001",
		"PDK/00/2025/0001",
		"PDK/04/2025/0000",
		"PDK/04/2025/0001 ",
		"PDK/ab/2025/0001",
	} {
		_, err := Parse(s)
		assert.True(t, apperror.Is(err, apperror.CodeMalformedCode), "input %q", s)
	}
}

func TestEntityType(t *testing.T) {
	abbr, err := StockOpnames.Abbreviation()
	require.NoError(t, err)
	assert.Equal(t, "SOP", abbr)

	_, err = EntityType("customers").Abbreviation()
	assert.True(t, apperror.Is(err, apperror.CodeUnsupportedEntityType))

	for _, in := range []string{"management_stocks", "management-stocks", "ManagementStocks"} {
		et, err := ParseEntityType(in)
		require.NoError(t, err, in)
		assert.Equal(t, ManagementStocks, et)
	}

	_, err = ParseEntityType("orders")
	assert.True(t, apperror.Is(err, apperror.CodeUnsupportedEntityType))

	et, ok := EntityTypeFor("SJN")
	assert.True(t, ok)
	assert.Equal(t, DeliveryNotes, et)
}

func TestAbbreviationsAreUnique(t *testing.T) {
	seen := map[string]EntityType{}
	for _, et := range EntityTypes() {
		abbr, err := et.Abbreviation()
		require.NoError(t, err)
		_, dup := seen[abbr]
		assert.False(t, dup, abbr)
		seen[abbr] = et
	}
	assert.Len(t, seen, len(abbreviations))
}

func TestBucket(t *testing.T) {
	b := BucketOf(time.Date(2025, time.April, 30, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, Bucket{Year: 2025, Month: 4}, b)
	assert.Equal(t, "2025-04", b.String())
	assert.Equal(t, "PDK/04/2025/", Prefix("PDK", b))

	parsed, err := ParseBucket("2025-05")
	require.NoError(t, err)
	assert.Equal(t, Bucket{Year: 2025, Month: 5}, parsed)

	_, err = ParseBucket("05/2025")
	assert.Error(t, err)
}
