package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/any-hub/moab-cache/internal/config"
	"github.com/any-hub/moab-cache/internal/rootdir"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("MOAB_CACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOut.(*bytes.Buffer).String(), "moab-cache") {
		t.Fatalf("version 输出应包含 moab-cache 标识")
	}
}

func TestConfiguredKindsFollowsCacheEntries(t *testing.T) {
	kinds := configuredKinds([]config.CacheConfig{
		{Name: "a", RootKind: rootdir.Caches},
		{Name: "b", RootKind: rootdir.Documents},
	})
	if len(kinds) != 2 || kinds[0] != rootdir.Caches || kinds[1] != rootdir.Documents {
		t.Fatalf("类别列表不正确: %v", kinds)
	}
}
