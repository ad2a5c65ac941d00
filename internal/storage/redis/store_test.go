package redis

import "testing"

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.options()
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	if opts.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want localhost:6379", opts.Addr)
	}

	cfg.URL = "redis://:secret@cache:6380/2"
	opts, err = cfg.options()
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Errorf("options() = %+v", opts)
	}

	cfg.URL = "http://nope"
	if _, err := cfg.options(); err == nil {
		t.Error("options() should reject a non-redis URL")
	}
}
