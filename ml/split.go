package ml

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets keeping the
// class proportions. Each class sends round(testRatio*n) rows to the test set,
// clamped so both sides keep at least one row of every class.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (train, test []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.25
	}
	rnd := rand.New(rand.NewSource(seed))

	byClass := [2][]int{}
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	for _, members := range byClass {
		if len(members) == 0 {
			continue
		}
		rnd.Shuffle(len(members), func(a, b int) {
			members[a], members[b] = members[b], members[a]
		})
		nTest := int(math.Round(testRatio * float64(len(members))))
		if nTest < 1 {
			nTest = 1
		}
		if nTest > len(members)-1 {
			nTest = len(members) - 1
		}
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
