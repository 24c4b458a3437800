package config

import (
	"strings"
	"testing"
	"time"
)

func setRelayEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SOURCE_CHANNEL", "-1001")
	t.Setenv("DESTINATION_CHANNEL", "-1002")
}

func TestLoadRelayDefaults(t *testing.T) {
	setRelayEnv(t)

	cfg, err := Load[Relay]()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinDelay != 2*time.Second || cfg.MaxDelay != 5*time.Second {
		t.Fatalf("delay window = [%v, %v]", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.BatchSize != 100 || cfg.BatchPause != time.Second || cfg.ThrottleMargin != 5*time.Second {
		t.Fatalf("batch defaults = %d/%v/%v", cfg.BatchSize, cfg.BatchPause, cfg.ThrottleMargin)
	}
	if cfg.TaskFile != "tasks.txt" {
		t.Fatalf("TaskFile = %q", cfg.TaskFile)
	}
	if cfg.PollsOnly {
		t.Fatal("PollsOnly should default to false")
	}
}

func TestLoadRelayMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SOURCE_CHANNEL", "")
	t.Setenv("DESTINATION_CHANNEL", "-1002")

	if _, err := Load[Relay](); err == nil {
		t.Fatal("expected error for empty SOURCE_CHANNEL")
	}
}

func TestLoadRelayInvalidWindow(t *testing.T) {
	setRelayEnv(t)
	t.Setenv("MIN_DELAY", "10s")
	t.Setenv("MAX_DELAY", "2s")

	_, err := Load[Relay]()
	if err == nil || !strings.Contains(err.Error(), "MIN_DELAY/MAX_DELAY") {
		t.Fatalf("expected window validation error, got %v", err)
	}
}

func TestLoadBulkDeleteBatchCap(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DESTINATION_CHANNEL", "-1002")
	t.Setenv("BATCH_SIZE", "500")

	_, err := Load[BulkDelete]()
	if err == nil || !strings.Contains(err.Error(), "BATCH_SIZE") {
		t.Fatalf("expected batch-size validation error, got %v", err)
	}
}

func TestLoadSendQuiz(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "@quizchannel")
	t.Setenv("QUESTION_TAG", "[Prep]")

	cfg, err := Load[SendQuiz]()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SendDelay != 4*time.Second {
		t.Fatalf("SendDelay = %v", cfg.SendDelay)
	}
	if cfg.QuestionTag != "[Prep]" {
		t.Fatalf("QuestionTag = %q", cfg.QuestionTag)
	}
}
