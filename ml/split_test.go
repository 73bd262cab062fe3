package ml

import (
	"reflect"
	"testing"
)

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := 0; i < 40; i++ {
		labels[i] = 1
	}
	train, test := StratifiedSplit(labels, 0.25, DefaultSeed)
	if len(train)+len(test) != len(labels) {
		t.Fatalf("split lost rows: %d + %d", len(train), len(test))
	}
	testCounts := [2]int{}
	for _, i := range test {
		testCounts[labels[i]]++
	}
	if testCounts != [2]int{15, 10} {
		t.Fatalf("expected 15/10 in test, got %v", testCounts)
	}
	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		if seen[i] {
			t.Fatalf("index %d assigned twice", i)
		}
		seen[i] = true
	}

	train2, test2 := StratifiedSplit(labels, 0.25, DefaultSeed)
	if !reflect.DeepEqual(train, train2) || !reflect.DeepEqual(test, test2) {
		t.Fatal("split is not deterministic for a fixed seed")
	}
}

func TestStratifiedSplitSmallClass(t *testing.T) {
	labels := []int{0, 0, 0, 0, 0, 0, 1, 1}
	train, test := StratifiedSplit(labels, 0.25, DefaultSeed)
	var trainPos, testPos int
	for _, i := range train {
		trainPos += labels[i]
	}
	for _, i := range test {
		testPos += labels[i]
	}
	if trainPos != 1 || testPos != 1 {
		t.Fatalf("each side needs one positive, got train=%d test=%d", trainPos, testPos)
	}
}

func TestEvaluate(t *testing.T) {
	eval := Evaluate([]int{1, 1, 0, 0}, []int{1, 0, 0, 1})
	if eval.Accuracy != 0.5 || eval.Precision != 0.5 || eval.Recall != 0.5 || eval.F1 != 0.5 {
		t.Fatalf("unexpected evaluation %+v", eval)
	}
}
