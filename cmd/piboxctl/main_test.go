package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeter(t *testing.T) {
	tests := []struct {
		lit  int
		want string
	}{
		{lit: 0, want: "○○○○"},
		{lit: 1, want: "●○○○"},
		{lit: 3, want: "●●●○"},
		{lit: 4, want: "●●●●"},
		{lit: 9, want: "●●●●"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, meter(tt.lit))
	}
}
