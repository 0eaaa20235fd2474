package main

import (
	"testing"
)

func TestParseRunArgs(t *testing.T) {
	ra, err := parseRunArgs([]string{"/data/tm", "--limit", "10", "--retry-failed"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ra.Path != "/data/tm" || ra.Limit != 10 || !ra.LimitSet || !ra.RetryFailed {
		t.Fatalf("解析结果不对：%+v", ra)
	}

	ra, err = parseRunArgs([]string{"--limit=3"})
	if err != nil || ra.Limit != 3 || !ra.LimitSet {
		t.Fatalf("--limit=N 形式解析不对：%+v err=%v", ra, err)
	}
}

func TestParseRunArgs_Errors(t *testing.T) {
	cases := [][]string{
		{"--limit"},          // 缺值
		{"--limit", "abc"},   // 非整数
		{"--unknown"},        // 未知参数
		{"a", "b"},           // 重复 path
		{"--limit=x"},        // 非整数（=形式）
	}
	for _, args := range cases {
		if _, err := parseRunArgs(args); err == nil {
			t.Fatalf("期望报错：%v", args)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 8); got != "hello..." {
		t.Fatalf("截断不对：%q", got)
	}
	if got := truncate("short", 80); got != "short" {
		t.Fatalf("不应截断：%q", got)
	}
}
