package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLevelsAndFormats(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	if err := Setup("debug", "json"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.StandardLogger().Formatter)
	}
	if err := Setup("", ""); err != nil {
		t.Fatalf("setup defaults: %v", err)
	}
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}

func TestSetupRejectsUnknownValues(t *testing.T) {
	if err := Setup("loud", "text"); err == nil {
		t.Fatalf("expected level error")
	}
	if err := Setup("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
