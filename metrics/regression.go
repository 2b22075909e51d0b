// Package metrics は回帰モデルの評価指標を計算する
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/pkg/errors"
)

// checkPair は入力ベクトルを検証し、要素数を返す
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// R² = 1 - SSR/TSS。yTrue が定数で TSS = 0 の場合、R² は定義できないため
// 予測が完全なら 1、そうでなければ 0 を返し、UndefinedMetricWarning を通知する。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, ssr float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		ssr += (t - p) * (t - p)
	}
	if tss == 0 {
		// scikit-learn と同じく完全一致のみ 1
		result := 0.0
		if ssr == 0 {
			result = 1
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "no variance in yTrue", result))
		return result, nil
	}
	return 1 - ssr/tss, nil
}

// columnVector は n×1 行列をベクトルに変換する
func columnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// R2ScoreMatrix は行列形式（n×1）の入力に対して R² を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := columnVector("R2ScoreMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := columnVector("R2ScoreMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}

// Report は1つのテストセットに対する評価指標をまとめたもの
type Report struct {
	MAE  float64
	MSE  float64
	RMSE float64
	R2   float64
	N    int
}

func (r Report) String() string {
	return fmt.Sprintf("MAE=%.4f RMSE=%.4f R2=%.4f (n=%d)", r.MAE, r.RMSE, r.R2, r.N)
}

// Regression は対応するスライスから Report のすべての指標を計算する
// NaN や Inf を含む入力は NumericalInstabilityError になる
func Regression(yTrue, yPred []float64) (Report, error) {
	if len(yTrue) == 0 {
		return Report{}, errors.NewValueError("Regression", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return Report{}, errors.NewDimensionError("Regression", len(yTrue), len(yPred), 0)
	}
	if err := errors.CheckValues("Regression", yTrue); err != nil {
		return Report{}, err
	}
	if err := errors.CheckValues("Regression", yPred); err != nil {
		return Report{}, err
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	mae, err := MAE(t, p)
	if err != nil {
		return Report{}, err
	}
	mse, err := MSE(t, p)
	if err != nil {
		return Report{}, err
	}
	r2, err := R2Score(t, p)
	if err != nil {
		return Report{}, err
	}
	return Report{MAE: mae, MSE: mse, RMSE: math.Sqrt(mse), R2: r2, N: len(yTrue)}, nil
}
