package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"off":    zerolog.Disabled,
		"trace":  zerolog.TraceLevel,
		"error":  zerolog.ErrorLevel,
		"info":   zerolog.InfoLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "true")
	t.Setenv(EnvLogNoColor, "1")
	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || !cfg.Timestamp || !cfg.NoColor {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestApplyWritesToConfiguredOutput(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	Apply(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	log.Debug().Msg("hidden")
	log.Info().Uint16("template_id", 46).Msg("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") || !strings.Contains(out, "template_id=46") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestApplyLevelDefersToEnv(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prevLevel)

	t.Setenv(EnvLogLevel, "")
	if !ApplyLevel("warn") || zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("config level not applied")
	}
	if ApplyLevel("loud") {
		t.Fatalf("unknown level applied")
	}
	t.Setenv(EnvLogLevel, "debug")
	if ApplyLevel("error") || zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("config level must not override %s", EnvLogLevel)
	}
}
