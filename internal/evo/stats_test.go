package evo

import "testing"

func TestGenericStats(t *testing.T) {
	if got := Sum([]int{1, 2, 3}); got != 6 {
		t.Fatalf("sum got=%d want=6", got)
	}
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("mean got=%f want=2.5", got)
	}
	if got := Mean([]float64(nil)); got != 0 {
		t.Fatalf("empty mean got=%f want=0", got)
	}
	if got, ok := Max([]float64{-1, 4, 2}); !ok || got != 4 {
		t.Fatalf("max got=(%f,%t) want=(4,true)", got, ok)
	}
	if _, ok := Max([]int(nil)); ok {
		t.Fatal("expected no max for empty input")
	}
}
