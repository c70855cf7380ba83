package scoring_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/metrics"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/model/modeltest"
	"github.com/rushteam/fraudkit/scoring"
)

func TestBatch_OneMalformedRow(t *testing.T) {
	m := metrics.NewScoring()
	e := newEngine(t, scoring.WithMetrics(m))

	malformed := modeltest.LowRiskRow()
	malformed["unusual_amount_flag"] = "not-a-number"
	rows := []map[string]any{modeltest.LowRiskRow(), malformed, modeltest.RiskyRow(3)}

	res, err := scoring.NewBatch(e, scoring.WithWorkers(2)).Score(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, res.Failed)

	for i, row := range res.Rows {
		assert.Equal(t, i, row.Index)
	}
	assert.True(t, res.Rows[0].OK())
	assert.Equal(t, core.RiskLow, res.Rows[0].Result.RiskLevel)

	assert.False(t, res.Rows[1].OK())
	assert.Nil(t, res.Rows[1].Result)
	assert.True(t, core.IsRowRecoverable(res.Rows[1].Err))
	assert.Equal(t, core.ErrorCodeValidation, res.Rows[1].Code)
	assert.Contains(t, res.Rows[1].Error, "unusual_amount_flag")

	assert.Equal(t, core.RiskHigh, res.Rows[2].Result.RiskLevel)

	// 汇总只统计成功的行
	assert.Equal(t, 2, res.Report.Total)
	assert.Equal(t, 1, res.Report.FlaggedCount)
	assert.Equal(t, 1, res.Report.HighRiskCount)
	assert.Len(t, res.Results(), 2)

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.TotalScored)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchRowsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRowsTotal.WithLabelValues("failed")))
}

func TestBatch_PreservesOrder(t *testing.T) {
	e := newEngine(t)

	const n = 500
	rows := make([]map[string]any, n)
	for i := range rows {
		if i%7 == 0 {
			rows[i] = modeltest.RiskyRow(3)
		} else {
			rows[i] = modeltest.LowRiskRow()
		}
	}

	res, err := scoring.NewBatch(e, scoring.WithWorkers(8)).Score(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, res.Rows, n)
	for i, row := range res.Rows {
		require.True(t, row.OK(), "row %d", i)
		assert.Equal(t, i, row.Index)
		want := core.RiskLow
		if i%7 == 0 {
			want = core.RiskHigh
		}
		assert.Equal(t, want, row.Result.RiskLevel, "row %d", i)
	}
	assert.Equal(t, n, res.Report.Total)
}

func TestBatch_AllRowsFailed(t *testing.T) {
	e := stubEngine(t, core.ProbabilityVector{0.2, 0.2, 0.2}) // 概率和不为 1
	rows := []map[string]any{{}, {}, {}}

	res, err := scoring.NewBatch(e).Score(context.Background(), rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, scoring.ErrAllRowsFailed)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Failed)
	for _, row := range res.Rows {
		assert.True(t, core.IsScoring(row.Err))
	}
	assert.Equal(t, 0, res.Report.Total)
}

func TestBatch_Empty(t *testing.T) {
	res, err := scoring.NewBatch(newEngine(t)).Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 0, res.Report.Total)
}

func TestBatch_MaxRows(t *testing.T) {
	e := newEngine(t)
	rows := make([]map[string]any, 3)
	_, err := scoring.NewBatch(e, scoring.WithMaxRows(2)).Score(context.Background(), rows)
	assert.True(t, core.IsValidation(err), "got %v", err)
}

func TestBatch_FeatureContractAborts(t *testing.T) {
	c, err := feature.NewContract("strict", []string{
		"f_velocity", "f_amount", "f_device_location", "f_merchant",
		"f_temporal", "f_payment_method", "f_ip_historical", "f_behavioral_meta",
	}, nil)
	require.NoError(t, err)
	specialists := make([]*model.Specialist, 0, model.NumSpecialists)
	for _, g := range model.CanonicalGroups {
		s, err := model.NewSpecialist(g, []string{"f_" + g}, nil, modeltest.Const{P: core.ProbabilityVector{1, 0, 0}})
		require.NoError(t, err)
		specialists = append(specialists, s)
	}
	b, err := model.NewBundle("strict", c, specialists, modeltest.Const{P: core.ProbabilityVector{1, 0, 0}})
	require.NoError(t, err)
	e, err := scoring.NewEngine(b)
	require.NoError(t, err)

	res, err := scoring.NewBatch(e).Score(context.Background(), []map[string]any{{}})
	assert.Nil(t, res)
	assert.True(t, core.IsFeatureContract(err), "got %v", err)
}

func TestBatch_Canceled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []map[string]any{modeltest.LowRiskRow(), modeltest.LowRiskRow()}
	res, err := scoring.NewBatch(e).Score(ctx, rows)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Failed)
	for _, row := range res.Rows {
		assert.ErrorIs(t, row.Err, context.Canceled)
		assert.Equal(t, "CANCELED", row.Code)
	}

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.TotalScored)
}

func TestBatch_CancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	meta := modeltest.Func(func(x []float64) (core.ProbabilityVector, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return core.ProbabilityVector{1, 0, 0}, nil
	})
	b := modeltest.StubBundle(t, modeltest.Const{P: core.ProbabilityVector{1, 0, 0}}, meta)
	e, err := scoring.NewEngine(b)
	require.NoError(t, err)

	rows := make([]map[string]any, 10)
	for i := range rows {
		rows[i] = map[string]any{}
	}
	// 单 worker 保证顺序执行：第 2 行之后的行都不会开始
	res, err := scoring.NewBatch(e, scoring.WithWorkers(1)).Score(ctx, rows)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Rows[0].OK())
	assert.True(t, res.Rows[1].OK())
	for _, row := range res.Rows[2:] {
		assert.ErrorIs(t, row.Err, context.Canceled)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, res.Report.Total)
}
