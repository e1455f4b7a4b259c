package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFlight(t *testing.T) {
	tests := []struct {
		in      string
		carrier string
		number  string
		wantErr bool
	}{
		{in: "DL202", carrier: "DL", number: "202"},
		{in: "ua1234", carrier: "UA", number: "1234"},
		{in: " B61 ", carrier: "B", number: "61"},
		{in: "202", wantErr: true},
		{in: "DL", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			carrier, number, err := splitFlight(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.carrier, carrier)
			assert.Equal(t, tt.number, number)
		})
	}
}
