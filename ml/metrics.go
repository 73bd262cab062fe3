package ml

// Evaluation summarizes held-out performance for the survived class.
type Evaluation struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate scores predicted labels against the true ones, treating 1 as positive.
func Evaluate(predicted, actual []int) Evaluation {
	eval := Evaluation{Samples: len(actual)}
	if len(actual) == 0 || len(predicted) != len(actual) {
		return eval
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, label := range predicted {
		if label == actual[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if actual[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	eval.Accuracy = float64(correct) / float64(len(actual))
	if predictedPositive > 0 {
		eval.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		eval.Recall = float64(truePositive) / float64(actualPositive)
	}
	if eval.Precision+eval.Recall > 0 {
		eval.F1 = 2 * eval.Precision * eval.Recall / (eval.Precision + eval.Recall)
	}
	return eval
}
