package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"causet/internal/graph"
	"causet/internal/trace"
)

func TestRSquared_PerfectFit(t *testing.T) {
	r2, ssRes, ssTot, err := RSquared([]float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)
	assert.Equal(t, 0.0, ssRes)
	assert.Equal(t, 10.0, ssTot)
}

func TestRSquared_MeanPrediction(t *testing.T) {
	r2, _, _, err := RSquared([]float64{1, 2, 3, 4, 5}, []float64{3, 3, 3, 3, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r2, 1e-12, "predicting the mean explains nothing")
}

func TestRSquared_WorseThanMean(t *testing.T) {
	r2, _, _, err := RSquared([]float64{1, 2, 3, 4, 5}, []float64{5, 4, 3, 2, 1})
	require.NoError(t, err)
	assert.Less(t, r2, 0.0)
}

func TestRSquared_LengthMismatch(t *testing.T) {
	_, _, _, err := RSquared([]float64{1, 2, 3}, []float64{1, 2})
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestRSquared_TooFewSamples(t *testing.T) {
	_, _, _, err := RSquared([]float64{1}, []float64{1})
	assert.Error(t, err)
}

func TestRSquared_ConstantTarget(t *testing.T) {
	yTrue := make([]float64, 10)
	yPred := make([]float64, 10)
	for i := range yTrue {
		yTrue[i], yPred[i] = 5, 5
	}
	r2, ssRes, ssTot, err := RSquared(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)
	assert.Equal(t, 0.0, ssRes)
	assert.Equal(t, 0.0, ssTot)

	t.Run("disagreeing model errors", func(t *testing.T) {
		yPred[3] = 6
		_, _, _, err := RSquared(yTrue, yPred)
		assert.Error(t, err, "a constant target cannot be explained by a model that disagrees")
	})
}

func TestRSquared_DropsNonFinitePairs(t *testing.T) {
	r2, _, _, err := RSquared(
		[]float64{1, 2, math.NaN(), 4, 5},
		[]float64{1, 2, 3, math.Inf(1), 5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2, "non-finite pairs are dropped, the rest fit perfectly")

	t.Run("all non-finite errors", func(t *testing.T) {
		_, _, _, err := RSquared(
			[]float64{math.NaN(), math.NaN()},
			[]float64{1, 2})
		assert.Error(t, err)
	})
}

func tableOf(t *testing.T, n int, fill func(i int) map[string]float64) *trace.Trace {
	t.Helper()
	first := fill(0)
	cols := make([]string, 0, len(first))
	for c := range first {
		cols = append(cols, c)
	}
	tr := trace.New(cols)
	for i := 0; i < n; i++ {
		require.NoError(t, tr.AppendRow(fill(i)))
	}
	return tr
}

func TestTrainTestSplit_Sizes(t *testing.T) {
	tr := tableOf(t, 100, func(i int) map[string]float64 {
		return map[string]float64{"x": float64(i)}
	})

	train, test, err := TrainTestSplit(tr, 0.2, 11)
	require.NoError(t, err)
	assert.Equal(t, 80, train.NumRows())
	assert.Equal(t, 20, test.NumRows())

	t.Run("reproducible for a fixed seed", func(t *testing.T) {
		train2, test2, err := TrainTestSplit(tr, 0.2, 11)
		require.NoError(t, err)
		assert.Equal(t, train.Values, train2.Values)
		assert.Equal(t, test.Values, test2.Values)
	})
}

func TestTrainTestSplit_TooFewRows(t *testing.T) {
	tr := tableOf(t, 3, func(i int) map[string]float64 {
		return map[string]float64{"x": float64(i)}
	})
	_, _, err := TrainTestSplit(tr, 0.2, 1)
	var insufficient *InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestTrainTestSplit_BadTestSize(t *testing.T) {
	tr := tableOf(t, 10, func(i int) map[string]float64 {
		return map[string]float64{"x": float64(i)}
	})
	_, _, err := TrainTestSplit(tr, 1.5, 1)
	assert.Error(t, err)
}

// modelFunc adapts a closure to the Model interface.
type modelFunc func(node string, parents map[string][]float64) ([]float64, error)

func (f modelFunc) PredictNode(node string, parents map[string][]float64) ([]float64, error) {
	return f(node, parents)
}

func pairGraph(t *testing.T) *graph.CausalGraph {
	t.Helper()
	g := graph.NewCausalGraph()
	g.AddNode(&graph.GraphNode{ID: "x", Name: "x", Kind: graph.NodeVariable, Scope: graph.ModuleScope})
	g.AddNode(&graph.GraphNode{ID: "y", Name: "y", Kind: graph.NodeVariable, Scope: graph.ModuleScope})
	g.AddEdge("x", "y", graph.EdgeDataFlow)
	return g
}

func linearModel() Model {
	return modelFunc(func(node string, parents map[string][]float64) ([]float64, error) {
		xs := parents["x"]
		out := make([]float64, len(xs))
		for i, v := range xs {
			out[i] = 2*v + 1
		}
		return out, nil
	})
}

func linearTable(t *testing.T, n int) *trace.Trace {
	return tableOf(t, n, func(i int) map[string]float64 {
		x := float64(i)
		return map[string]float64{"x": x, "y": 2*x + 1}
	})
}

func TestCrossValidate_PerfectModelPasses(t *testing.T) {
	g := pairGraph(t)
	result, err := CrossValidate(linearModel(), linearTable(t, 50), g, 0.2, 0.8, 1)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Empty(t, result.FailedNodes)
	assert.InDelta(t, 1.0, result.Aggregate, 1e-12)

	score, ok := result.NodeScores["y"]
	require.True(t, ok)
	assert.InDelta(t, 1.0, score.R2, 1e-12)
	assert.Equal(t, 10, score.Samples)

	_, hasRoot := result.NodeScores["x"]
	assert.False(t, hasRoot, "root nodes are skipped entirely")
}

func TestCrossValidate_BelowThreshold(t *testing.T) {
	g := pairGraph(t)
	noise := modelFunc(func(node string, parents map[string][]float64) ([]float64, error) {
		out := make([]float64, len(parents["x"]))
		for i := range out {
			out[i] = float64(i%2) * 1000 // wildly wrong
		}
		return out, nil
	})

	result, err := CrossValidate(noise, linearTable(t, 50), g, 0.2, 0.8, 1)
	var thresholdErr *ThresholdError
	require.ErrorAs(t, err, &thresholdErr)
	require.NotNil(t, result)
	assert.False(t, result.Passed)
	assert.Contains(t, result.FailedNodes, "y")
	assert.Contains(t, thresholdErr.FailedNodes, "y")
}

func TestCrossValidate_ModelFailureWraps(t *testing.T) {
	g := pairGraph(t)
	failing := modelFunc(func(node string, parents map[string][]float64) ([]float64, error) {
		return nil, assert.AnError
	})
	_, err := CrossValidate(failing, linearTable(t, 50), g, 0.2, 0.8, 1)
	var fitErr *FittingError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, "y", fitErr.Node)
}

func TestBootstrap_PerfectModelTight(t *testing.T) {
	g := pairGraph(t)
	cis, err := BootstrapConfidenceIntervals(linearModel(), linearTable(t, 60), g, 100, 0.95, 2)
	require.NoError(t, err)

	ci, ok := cis["y"]
	require.True(t, ok)
	assert.InDelta(t, 1.0, ci.Mean, 1e-9)
	assert.InDelta(t, 0.0, ci.Std, 1e-9)
	assert.InDelta(t, 1.0, ci.Lower, 1e-9)
	assert.InDelta(t, 1.0, ci.Upper, 1e-9)
	assert.Equal(t, 0.95, ci.Confidence)
}

func TestBootstrap_RejectsLowResampleCount(t *testing.T) {
	g := pairGraph(t)
	_, err := BootstrapConfidenceIntervals(linearModel(), linearTable(t, 60), g, 50, 0.95, 2)
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestBootstrap_Reproducible(t *testing.T) {
	g := pairGraph(t)
	first, err := BootstrapConfidenceIntervals(linearModel(), linearTable(t, 60), g, 100, 0.9, 7)
	require.NoError(t, err)
	second, err := BootstrapConfidenceIntervals(linearModel(), linearTable(t, 60), g, 100, 0.9, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPercentile_Interpolates(t *testing.T) {
	sorted := []float64{0, 1, 2, 3, 4}
	assert.Equal(t, 2.0, percentile(sorted, 0.5))
	assert.Equal(t, 0.0, percentile(sorted, 0))
	assert.Equal(t, 4.0, percentile(sorted, 1))
	assert.InDelta(t, 3.0, percentile(sorted, 0.75), 1e-12)
}
