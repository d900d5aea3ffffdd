package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"Áo thun nữ", "ao-thun-nu"},
		{"Đồng hồ Đeo tay", "dong-ho-deo-tay"},
		{"Giày thể thao Nike Air", "giay-the-thao-nike-air"},
		{"Sữa rửa mặt 100ml", "sua-rua-mat-100ml"},
		{"Hello!!! World???", "hello-world"},
		{"  --spaced--  ", "spaced"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}
