package ml

import "math/rand"

// syntheticData builds a small colic table where survival is decided by pulse.
func syntheticData(n int, seed int64) ([]Row, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	rows := make([]Row, n)
	outcomes := make([]float64, n)
	for i := 0; i < n; i++ {
		pulse := 40 + rnd.Float64()*100
		rec := FeatureRecord{
			Surgery:          Float(float64(1 + rnd.Intn(2))),
			Age:              Float(1),
			RectalTemp:       Float(37 + rnd.Float64()*2),
			Pulse:            Float(pulse),
			RespiratoryRate:  Float(10 + rnd.Float64()*40),
			Pain:             Float(float64(1 + rnd.Intn(5))),
			PackedCellVolume: Float(30 + rnd.Float64()*30),
			TotalProtein:     Float(5 + rnd.Float64()*60),
		}
		if i%7 == 0 {
			rec.RectalTemp = nil
		}
		if i%11 == 0 {
			rec.Pain = nil
		}
		rows[i] = rec.Row()
		switch {
		case pulse < 85:
			outcomes[i] = 1
		case i%2 == 0:
			outcomes[i] = 2
		default:
			outcomes[i] = 3
		}
	}
	return rows, outcomes
}

func trainSynthetic(t interface{ Fatalf(string, ...interface{}) }) *Pipeline {
	rows, outcomes := syntheticData(80, 7)
	p, err := Train(rows, outcomes, DefaultTrainConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return p
}
