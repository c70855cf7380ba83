// Command fraudscore 加载模型工件，对交易 JSON 打分并输出风险结果与决策。
//
//	fraudscore info   --bundle artifacts/fraud_bundle.json
//	fraudscore score  --bundle artifacts/fraud_bundle.json txn.json
//	fraudscore batch  --config fraud.yaml txns.jsonl
//	fraudscore report --config fraud.yaml --top 10 txns.json
//
// 退出码：0 成功；1 打分失败（单条失败或整批失败）；2 配置 / 工件错误。
package main

import (
	"os"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
