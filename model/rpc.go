package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/fraudkit/core"
)

// RPCModel 是通过 HTTP 调用外部模型服务的 Classifier 实现。
// 适用于 TorchServe / KServe / 自建 sklearn 服务等，服务端必须是确定性的。
//
// 请求格式（JSON）：
//
//	{"instances": [[0.1, 2.0, ...]]}
//
// 响应格式（JSON）：
//
//	{"probabilities": [[0.97, 0.02, 0.01]]}
type RPCModel struct {
	Endpoint string // 例如 "http://localhost:8080/v1/models/velocity:predict"
	Timeout  time.Duration
	Client   *http.Client
	width    int
}

func NewRPCModel(endpoint string, width int, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &RPCModel{
		Endpoint: endpoint,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
		width:    width,
	}
}

func buildRPC(spec json.RawMessage, width int) (Classifier, error) {
	var raw struct {
		Endpoint  string `json:"endpoint"`
		TimeoutMS int    `json:"timeout_ms"`
	}
	if err := json.Unmarshal(spec, &raw); err != nil {
		return nil, fmt.Errorf("parse rpc model: %w", err)
	}
	if raw.Endpoint == "" {
		return nil, fmt.Errorf("rpc model endpoint not found")
	}
	return NewRPCModel(raw.Endpoint, width, time.Duration(raw.TimeoutMS)*time.Millisecond), nil
}

func (m *RPCModel) Name() string { return "rpc" }

// Predict 调用远程模型服务，返回单条样本的类别概率。
func (m *RPCModel) Predict(x []float64) (core.ProbabilityVector, error) {
	var p core.ProbabilityVector
	if err := checkInput(x, m.width); err != nil {
		return p, err
	}
	if m.Client == nil {
		m.Client = &http.Client{Timeout: m.Timeout}
	}

	jsonData, err := json.Marshal(map[string]any{"instances": [][]float64{x}})
	if err != nil {
		return p, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return p, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return p, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return p, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Probabilities [][]float64 `json:"probabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return p, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Probabilities) != 1 || len(result.Probabilities[0]) != core.NumClasses {
		return p, fmt.Errorf("rpc response shape mismatch: %v", result.Probabilities)
	}
	copy(p[:], result.Probabilities[0])
	return p, nil
}
