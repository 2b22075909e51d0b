// Package model は推定器と変換器が共有するインターフェース、学習状態の管理、
// gob による永続化を提供する
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はモデルの決定係数（R²）を計算するインターフェース
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデルが実装するインターフェースの組み合わせ
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter はハイパーパラメータを取得するインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
