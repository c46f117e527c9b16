package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/sitecms/internal/adapter/ristretto"
	"github.com/Strob0t/sitecms/internal/port/cache/cachetest"
)

func TestCompliance(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	cachetest.RunComplianceTests(t, c)
}

func TestTTLExpiry(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, found, _ := c.Get(ctx, "short"); !found {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("entry did not expire")
}
