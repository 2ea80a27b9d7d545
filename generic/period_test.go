package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/asset-engine/generic"
)

func TestPeriod_Contains(t *testing.T) {
	p := generic.Period{
		Start: generic.MustParseDate("2024-03-01"),
		End:   generic.MustParseDate("2024-03-31"),
	}
	assert.True(t, p.Contains(generic.MustParseDate("2024-03-01")), "start is inclusive")
	assert.True(t, p.Contains(generic.MustParseDate("2024-03-31")), "end is inclusive")
	assert.False(t, p.Contains(generic.MustParseDate("2024-04-01")))

	open := generic.Period{End: generic.MustParseDate("2024-03-31")}
	assert.True(t, open.Contains(generic.MustParseDate("1999-01-01")), "zero start is open")
	assert.True(t, generic.Period{}.Contains(generic.MustParseDate("2099-01-01")))
}

func TestPeriod_Validate(t *testing.T) {
	bad := generic.Period{
		Start: generic.MustParseDate("2024-03-31"),
		End:   generic.MustParseDate("2024-03-01"),
	}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidInput)
	assert.NoError(t, generic.Period{Start: generic.MustParseDate("2024-03-31")}.Validate())
}

func TestPeriodConfig_PeriodFor(t *testing.T) {
	day := generic.MustParseDate("2024-05-14")
	tests := []struct {
		cfg        generic.PeriodConfig
		start, end string
	}{
		{generic.PeriodConfig{Type: generic.PeriodMonth}, "2024-05-01", "2024-05-31"},
		{generic.PeriodConfig{Type: generic.PeriodQuarter}, "2024-04-01", "2024-06-30"},
		{generic.PeriodConfig{Type: generic.PeriodYear}, "2024-01-01", "2024-12-31"},
		{generic.PeriodConfig{Type: generic.PeriodRolling, RollingDays: 14}, "2024-05-01", "2024-05-14"},
		{generic.PeriodConfig{Type: generic.PeriodRolling}, "2024-04-15", "2024-05-14"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cfg.Type), func(t *testing.T) {
			p := tt.cfg.PeriodFor(day)
			assert.Equal(t, tt.start, p.Start.String())
			assert.Equal(t, tt.end, p.End.String())
		})
	}
}

func TestParsePeriodType(t *testing.T) {
	pt, err := generic.ParsePeriodType("quarter")
	assert.NoError(t, err)
	assert.Equal(t, generic.PeriodQuarter, pt)

	_, err = generic.ParsePeriodType("fortnight")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
