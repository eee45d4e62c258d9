package risk

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/medipredict/internal/features"
)

// DefaultSeed 与原型中 train_test_split 的 random_state 保持一致
const DefaultSeed int64 = 42

// Evaluation 为留出集上的评估结果
type Evaluation struct {
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

// Evaluate 以固定种子打乱后按 testFraction 切分，训练集上拟合并在测试集上计算准确率。
// 训练集缺少任一类别时返回 ErrInsufficientData。
func Evaluate(table features.Table, testFraction float64, seed int64, opts Options) (Evaluation, error) {
	n := table.Len()
	if testFraction <= 0 || testFraction >= 1 {
		return Evaluation{}, fmt.Errorf("test fraction must be in (0,1), got %v", testFraction)
	}

	testRows := int(math.Ceil(float64(n) * testFraction))
	trainRows := n - testRows
	if testRows < 1 || trainRows < 2 {
		return Evaluation{}, fmt.Errorf("%w: %d rows cannot be split", ErrInsufficientData, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testSet := table.Subset(perm[:testRows])
	trainSet := table.Subset(perm[testRows:])

	estimator := New(opts)
	if err := estimator.Fit(trainSet); err != nil {
		return Evaluation{}, err
	}

	correct := 0
	for _, row := range testSet.Rows {
		pMissed, err := estimator.Predict(row.Hour, row.DayOfWeek, row.Slot)
		if err != nil {
			return Evaluation{}, err
		}
		predicted := features.LabelTaken
		if pMissed > 0.5 {
			predicted = features.LabelMissed
		}
		if predicted == row.Label {
			correct++
		}
	}

	return Evaluation{
		TrainRows: trainRows,
		TestRows:  testRows,
		Correct:   correct,
		Accuracy:  float64(correct) / float64(testRows),
	}, nil
}
