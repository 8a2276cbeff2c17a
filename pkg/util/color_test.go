package util

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ff00ff", color.NRGBA{255, 0, 255, 255}},
		{"00ff0080", color.NRGBA{0, 255, 0, 128}},
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{" #102030 ", color.NRGBA{16, 32, 48, 255}},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		back, err := ParseHexColor(FormatHexColor(got))
		require.NoError(t, err)
		assert.Equal(t, got, back)
	}

	for _, bad := range []string{"", "#12", "#gg0000", "#1234567"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}
