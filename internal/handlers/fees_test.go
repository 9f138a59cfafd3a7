package handlers

import "testing"

func TestPlatformFee(t *testing.T) {
	cases := []struct {
		total int64
		want  int64
	}{
		{0, 0},
		{100000, 3000},  // 2 × 50,000
		{10, 0},         // 0.3 rounds down
		{50, 2},         // 1.5 rounds up
		{333333, 10000}, // 9999.99 rounds up
	}
	for _, tc := range cases {
		if got := platformFee(tc.total); got != tc.want {
			t.Fatalf("platformFee(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}
