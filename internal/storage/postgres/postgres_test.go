package postgres

import "testing"

func TestConnString(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "jobs", Database: "jobs"}
	want := "host=db port=5433 user=jobs dbname=jobs sslmode=disable"
	if got := cfg.ConnString(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	cfg.Password = "s3cret"
	cfg.SSLMode = "require"
	want = "host=db port=5433 user=jobs dbname=jobs sslmode=require password=s3cret"
	if got := cfg.ConnString(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("expected nil for empty string")
	}
	if p := nullable("x"); p == nil || *p != "x" {
		t.Error("expected pointer to x")
	}
}
