package scm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FitSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fit", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","validation":{"mean_r2":0.97,"passed":true}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	resp, err := client.Fit(context.Background(), FitRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	require.NotNil(t, resp.Validation)
	assert.Equal(t, 0.97, resp.Validation.MeanR2)
}

func TestClient_ErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","error":"singular matrix","traceback":"Traceback..."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Fit(context.Background(), FitRequest{})

	var svcErr *ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "singular matrix", svcErr.Message)
	assert.Equal(t, "Traceback...", svcErr.Traceback)
}

func TestClient_NonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy error</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Query(context.Background(), QueryRequest{})

	var svcErr *ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Message, "malformed response")
}

func TestClient_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Fit(context.Background(), FitRequest{})

	var svcErr *ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Message, "503")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond)
	_, err := client.Fit(context.Background(), FitRequest{})

	var svcErr *ExternalServiceError
	assert.ErrorAs(t, err, &svcErr, "timeouts fail cleanly, never hang")
}

func TestStub_QueryResamplesAndIntervenes(t *testing.T) {
	stub := &Stub{Seed: 1}
	resp, err := stub.Query(context.Background(), QueryRequest{
		Traces: map[string][]float64{
			"x": {1, 2, 3, 4, 5},
			"y": {10, 20, 30, 40, 50},
		},
		Intervention: InterventionPayload{
			Type: "interventional",
			Interventions: []InterventionItem{
				{Type: "hard", Node: "x", Value: 7},
			},
			NumSamples: 40,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)

	require.Len(t, resp.Samples["x"], 40)
	for _, v := range resp.Samples["x"] {
		assert.Equal(t, 7.0, v, "hard intervention forces a constant")
	}
	assert.Equal(t, 7.0, resp.Statistics["x"].Mean)
	assert.Equal(t, 0.0, resp.Statistics["x"].Std)

	ys := resp.Statistics["y"]
	assert.GreaterOrEqual(t, ys.Min, 10.0)
	assert.LessOrEqual(t, ys.Max, 50.0)
	assert.LessOrEqual(t, ys.Q05, ys.Q50)
	assert.LessOrEqual(t, ys.Q50, ys.Q95)
}

func TestStub_SoftInterventionShift(t *testing.T) {
	stub := &Stub{Seed: 2}
	resp, err := stub.Query(context.Background(), QueryRequest{
		Traces: map[string][]float64{"x": {1, 1, 1, 1}},
		Intervention: InterventionPayload{
			Interventions: []InterventionItem{
				{Type: "soft", Node: "x", Transform: "shift", Param: 5},
			},
			NumSamples: 10,
		},
	})
	require.NoError(t, err)
	for _, v := range resp.Samples["x"] {
		assert.Equal(t, 6.0, v)
	}
}

func TestStub_MissingTraces(t *testing.T) {
	stub := &Stub{}
	_, err := stub.Query(context.Background(), QueryRequest{})
	var svcErr *ExternalServiceError
	assert.ErrorAs(t, err, &svcErr)
}

func TestStub_CustomTransformExpression(t *testing.T) {
	stub := &Stub{Seed: 2}
	resp, err := stub.Query(context.Background(), QueryRequest{
		Traces: map[string][]float64{"x": {2, 2, 2, 2}},
		Intervention: InterventionPayload{
			Interventions: []InterventionItem{
				{Type: "soft", Node: "x", Transform: "custom", Expression: "(x + 1) * 3"},
			},
			NumSamples: 10,
		},
	})
	require.NoError(t, err)
	for _, v := range resp.Samples["x"] {
		assert.Equal(t, 9.0, v)
	}
}

func TestStub_CustomTransformBadExpression(t *testing.T) {
	stub := &Stub{Seed: 2}
	_, err := stub.Query(context.Background(), QueryRequest{
		Traces: map[string][]float64{"x": {1, 2}},
		Intervention: InterventionPayload{
			Interventions: []InterventionItem{
				{Type: "soft", Node: "x", Transform: "custom", Expression: "x +"},
			},
			NumSamples: 4,
		},
	})
	var svcErr *ExternalServiceError
	assert.ErrorAs(t, err, &svcErr)
}

func TestEvalExpr(t *testing.T) {
	cases := []struct {
		expr string
		x    float64
		want float64
	}{
		{"x", 3, 3},
		{"x * 2 + 1", 3, 7},
		{"(x + 1) / 2", 3, 2},
		{"-x", 3, -3},
		{"x * -2", 3, -6},
		{"x * x - 4", 3, 5},
		{"10 - x - 1", 3, 6},
	}
	for _, tc := range cases {
		got, err := evalExpr(tc.expr, tc.x)
		require.NoError(t, err, "expr %q", tc.expr)
		assert.Equal(t, tc.want, got, "expr %q", tc.expr)
	}

	for _, expr := range []string{"", "x +", "(x", "x ** 2", "1 / (x - x)"} {
		_, err := evalExpr(expr, 3)
		assert.Error(t, err, "expr %q", expr)
	}
}
