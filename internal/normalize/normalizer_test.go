package normalize

import "testing"

func TestCPUIndex(t *testing.T) {
	cases := []struct {
		req, max, want int
	}{
		{-1, 4, -1},
		{-7, 4, -1},
		{0, 4, 0},
		{3, 4, 3},
		{4, 4, 0},
		{9, 4, 1},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := CPUIndex(tc.req, tc.max); got != tc.want {
			t.Errorf("CPUIndex(%d, %d) = %d, want %d", tc.req, tc.max, got, tc.want)
		}
	}
	if got := CPUIndexAuto(0); got != 0 {
		t.Errorf("CPUIndexAuto(0) = %d", got)
	}
}
