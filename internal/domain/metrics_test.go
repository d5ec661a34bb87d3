package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name      string
		rawText   string
		ariaLabel string
		want      int
	}{
		{name: "plain integer", rawText: "155", want: 155},
		{name: "grouped digits", rawText: "1,234", want: 1234},
		{name: "thousands suffix", rawText: "1.5K", want: 1500},
		{name: "lowercase thousands suffix", rawText: "2k", want: 2000},
		{name: "millions suffix", rawText: "2M", want: 2000000},
		{name: "decimal millions", rawText: "1.2M", want: 1200000},
		{name: "myriad marker", rawText: "1.5万", want: 15000},
		{name: "hundred million marker", rawText: "1億", want: 100000000},
		{name: "decimal floored", rawText: "12.7", want: 12},
		{name: "whitespace trimmed", rawText: "  42  ", want: 42},
		{name: "empty text and label", rawText: "", ariaLabel: "", want: 0},
		{name: "label with no number", rawText: "", ariaLabel: "not a number", want: 0},
		{name: "count from english label", rawText: "", ariaLabel: "155 likes", want: 155},
		{name: "count from japanese label", rawText: "", ariaLabel: "1.5万件のいいね", want: 15000},
		{name: "label with suffix", rawText: "", ariaLabel: "12.5K Views", want: 12500},
		{name: "text preferred over label", rawText: "3", ariaLabel: "999 likes", want: 3},
		{name: "garbage text", rawText: "—", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.rawText, tt.ariaLabel))
		})
	}
}
