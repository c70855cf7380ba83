package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/policy"
	"github.com/rushteam/fraudkit/scoring"
)

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print model bundle information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			return c.writeJSON(rt.Bundle.Info())
		},
	}
}

// scoreOutput 单条打分输出
type scoreOutput struct {
	Result   *core.ScoringResult `json:"result,omitempty"`
	Decision policy.Decision     `json:"decision"`
	Error    *errorBody          `json:"error,omitempty"`
}

func (c *cli) scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [file|-]",
		Short: "Score one transaction (a JSON object)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, log, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := c.readRows(args)
			if err != nil {
				return err
			}
			if len(rows) != 1 {
				return core.NewValidationError(core.ModuleScoring, "score expects exactly one transaction, got %d", len(rows))
			}

			res, scoreErr := rt.Engine.Score(cmd.Context(), rows[0])
			out := scoreOutput{Result: res, Decision: rt.Decide(res, scoreErr), Error: newErrorBody(scoreErr)}
			if scoreErr != nil {
				c.exitCode = exitFailed
			}
			log.Debug("transaction decided", zap.String("action", string(out.Decision.Action)))
			return c.writeJSON(out)
		},
	}
}

// batchRow 批量输出中的一行
type batchRow struct {
	scoring.RowResult
	Decision policy.Decision `json:"decision"`
}

// batchOutput 批量打分输出
type batchOutput struct {
	ID     string         `json:"batch_id"`
	Rows   []batchRow     `json:"rows"`
	Failed int            `json:"failed"`
	Report scoring.Report `json:"report"`
	Error  *errorBody     `json:"error,omitempty"`
}

func (c *cli) batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file|-]",
		Short: "Score a batch (JSON array or JSON lines) and print per-row results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := c.readRows(args)
			if err != nil {
				return err
			}
			res, batchErr := rt.Batch.Score(cmd.Context(), rows)
			if res == nil {
				// 整批中止（行数超限、特征契约错误）
				return batchErr
			}
			out := batchOutput{ID: res.ID, Failed: res.Failed, Report: res.Report, Error: newErrorBody(batchErr)}
			out.Rows = make([]batchRow, len(res.Rows))
			for i, row := range res.Rows {
				out.Rows[i] = batchRow{RowResult: row, Decision: rt.Decide(row.Result, row.Err)}
			}
			if batchErr != nil {
				c.exitCode = exitFailed
			}
			return c.writeJSON(out)
		},
	}
}

// reportOutput 汇总报告输出
type reportOutput struct {
	ID       string           `json:"batch_id"`
	Report   scoring.Report   `json:"report"`
	Failed   int              `json:"failed"`
	HighRisk []scoring.Ranked `json:"high_risk"`
}

func (c *cli) reportCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "report [file|-]",
		Short: "Score a batch and print only the summary report and top high-risk rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := c.readRows(args)
			if err != nil {
				return err
			}
			res, batchErr := rt.Batch.Score(cmd.Context(), rows)
			if res == nil {
				return batchErr
			}
			// 保留输入下标：失败行置 nil
			byIndex := make([]*core.ScoringResult, len(res.Rows))
			for i, row := range res.Rows {
				byIndex[i] = row.Result
			}
			if err := c.writeJSON(reportOutput{
				ID:       res.ID,
				Report:   res.Report,
				Failed:   res.Failed,
				HighRisk: scoring.HighRisk(byIndex, top),
			}); err != nil {
				return err
			}
			return batchErr
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of high-risk transactions to list (0 = all)")
	return cmd
}

// readRows 从文件（或 stdin）读取交易：一个 JSON 对象、JSON 数组或 JSON lines。
// 数字按 json.Number 保留，由特征契约统一转换。
func (c *cli) readRows(args []string) ([]map[string]any, error) {
	var r io.Reader = c.stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, core.NewValidationError(core.ModuleScoring, "open input %s: %v", args[0], err)
		}
		defer f.Close()
		r = f
	}
	return decodeRows(r)
}

func decodeRows(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, core.NewValidationError(core.ModuleScoring, "empty input")
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()
	if first == '[' {
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return nil, core.NewValidationError(core.ModuleScoring, "decode JSON array: %v", err)
		}
		return rows, nil
	}

	var rows []map[string]any
	for {
		var row map[string]any
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.NewValidationError(core.ModuleScoring, "decode transaction %d: %v", len(rows), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
