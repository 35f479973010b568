package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-01-02", want: "2024-01-02"},
		{in: "20240102", want: "2024-01-02"},
		{in: " 2024-12-31 ", want: "2024-12-31"},
		{in: "2024-13-01", wantErr: true},
		{in: "01/02/2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDate(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, time.March, 5, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05", FormatDate(d))
}

func TestTodayIsMidnight(t *testing.T) {
	d := Today()
	assert.Zero(t, d.Hour())
	assert.Zero(t, d.Minute())
	assert.Equal(t, time.UTC, d.Location())
}
