package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置应可加载: %v", err)
	}

	if cfg.Road.Cols != 44 || cfg.Road.Rows != 6 {
		t.Fatalf("默认布局应为 44×6, 实际 %dx%d", cfg.Road.Cols, cfg.Road.Rows)
	}
	if cfg.Chain.PollInterval != 3*time.Second {
		t.Fatalf("默认轮询间隔应为 3s, 实际 %s", cfg.Chain.PollInterval)
	}
	if cfg.Rules.Default != "all" {
		t.Fatalf("默认规则应为 all, 实际 %s", cfg.Rules.Default)
	}
	if len(cfg.Rules.Presets) != 3 {
		t.Fatalf("默认应有 3 条预设规则, 实际 %d", len(cfg.Rules.Presets))
	}
	for _, rule := range cfg.Rules.Presets {
		if rule.Step < 1 {
			t.Fatalf("预设规则应已归一化: %+v", rule)
		}
	}
	if layout := cfg.Road.Layout(); layout.Capacity() != 264 {
		t.Fatalf("画布容量应为 264, 实际 %d", layout.Capacity())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("加载默认配置失败: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Chain.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("poll_interval=0 应校验失败")
	}

	cfg = base()
	cfg.Road.Backlog = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("backlog 小于网格容量应校验失败")
	}

	cfg = base()
	cfg.Rules.Default = "missing"
	if err := cfg.Validate(); err == nil {
		t.Fatal("default 规则不存在应校验失败")
	}

	cfg = base()
	cfg.Rules.Presets[1].ID = cfg.Rules.Presets[0].ID
	if err := cfg.Validate(); err == nil {
		t.Fatal("重复规则 id 应校验失败")
	}

	cfg = base()
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("Telegram 启用但缺少 bot_token 应校验失败")
	}
}
