package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults() should validate, got: %v", err)
	}
	if cfg.BookingCutoff != time.Hour {
		t.Errorf("BookingCutoff = %s, want 1h", cfg.BookingCutoff)
	}
	if cfg.AdmissionMaxAttempts != 2 {
		t.Errorf("AdmissionMaxAttempts = %d, want 2", cfg.AdmissionMaxAttempts)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Port = "0"
	cfg.SeatLockTTL = 0
	cfg.AdmissionMaxAttempts = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"Port", "SeatLockTTL", "AdmissionMaxAttempts"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %s, got: %s", want, msg)
		}
	}
}

func TestValidate_SeatLockTTLMustOutliveWrites(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		wantErr bool
	}{
		{name: "longer than write timeout", ttl: DefaultWriteTimeout + time.Second, wantErr: false},
		{name: "equal to write timeout", ttl: DefaultWriteTimeout, wantErr: true},
		{name: "shorter than write timeout", ttl: 10 * time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.SeatLockTTL = tt.ttl

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "SeatLockTTL must exceed WriteTimeout") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_EventsTopicRequiredWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.EventsEnabled = true
	cfg.EventsTopic = ""

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty topic with events enabled")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv(EnvBookingCutoff, "90m")
	t.Setenv(EnvAdmissionMaxAttempts, "3")
	t.Setenv(EnvEventsEnabled, "true")
	t.Setenv(EnvSeatLockWait, "not-a-duration")

	if got := getEnvDuration(EnvBookingCutoff, time.Hour); got != 90*time.Minute {
		t.Errorf("getEnvDuration = %s, want 90m", got)
	}
	if got := getEnvNum(EnvAdmissionMaxAttempts, 2); got != 3 {
		t.Errorf("getEnvNum = %d, want 3", got)
	}
	if got := getEnvBool(EnvEventsEnabled, false); !got {
		t.Error("getEnvBool = false, want true")
	}
	if got := getEnvDuration(EnvSeatLockWait, 5*time.Second); got != 5*time.Second {
		t.Errorf("invalid duration should fall back, got %s", got)
	}
}

func TestRedactMongoURI(t *testing.T) {
	got := redactMongoURI("mongodb://admin:secret@db:27017")
	if strings.Contains(got, "secret") {
		t.Errorf("credentials leaked: %s", got)
	}
	if got != "mongodb://***:***@db:27017" {
		t.Errorf("redactMongoURI = %s", got)
	}
}

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 10},
		{-5, 10},
		{25, 25},
		{1000, DefaultPaginationLimit},
	}
	for _, tt := range tests {
		if got := NormalizePaginationLimit(tt.in); got != tt.want {
			t.Errorf("NormalizePaginationLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if NormalizeOffset(-3) != 0 {
		t.Error("NormalizeOffset should clamp to zero")
	}
}
