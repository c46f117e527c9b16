package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/sitecms/internal/domain"
)

var errStoreDown = errors.New("connection refused")

type step struct {
	err     error         // returned by the guarded call
	advance time.Duration // clock moved before the call
	want    string        // breaker state after the call
	reject  bool          // call must be short-circuited
}

func TestBreakerStates(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		steps []step
	}{
		{
			name: "success keeps closed",
			max:  3,
			steps: []step{
				{want: "closed"},
				{want: "closed"},
			},
		},
		{
			name: "opens after consecutive failures",
			max:  2,
			steps: []step{
				{err: errStoreDown, want: "closed"},
				{err: errStoreDown, want: "open"},
				{reject: true, want: "open"},
			},
		},
		{
			name: "success resets failure count",
			max:  3,
			steps: []step{
				{err: errStoreDown, want: "closed"},
				{err: errStoreDown, want: "closed"},
				{want: "closed"},
				{err: errStoreDown, want: "closed"},
				{err: errStoreDown, want: "closed"},
			},
		},
		{
			name: "half-open success closes",
			max:  1,
			steps: []step{
				{err: errStoreDown, want: "open"},
				{advance: 500 * time.Millisecond, reject: true, want: "open"},
				{advance: time.Second, want: "closed"},
			},
		},
		{
			name: "half-open failure reopens",
			max:  2,
			steps: []step{
				{err: errStoreDown, want: "closed"},
				{err: errStoreDown, want: "open"},
				{advance: 2 * time.Second, err: errStoreDown, want: "open"},
				{reject: true, want: "open"},
			},
		},
		{
			name: "domain outcomes never trip",
			max:  1,
			steps: []step{
				{err: domain.ErrNotFound, want: "closed"},
				{err: domain.ErrConflict, want: "closed"},
				{err: domain.ErrInvalidTransition, want: "closed"},
				{err: domain.ErrValidation, want: "closed"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			b := NewBreaker(tt.max, time.Second)
			b.now = func() time.Time { return now }

			for i, s := range tt.steps {
				now = now.Add(s.advance)
				called := false
				err := b.Execute(func() error {
					called = true
					return s.err
				})
				if s.reject {
					if called || !errors.Is(err, ErrCircuitOpen) {
						t.Fatalf("step %d: expected short-circuit, called=%v err=%v", i, called, err)
					}
				} else if !errors.Is(err, s.err) {
					t.Fatalf("step %d: error = %v, want %v", i, err, s.err)
				}
				if got := b.State(); got != s.want {
					t.Fatalf("step %d: state = %s, want %s", i, got, s.want)
				}
			}
		})
	}
}

func TestCircuitOpenIsUnavailable(t *testing.T) {
	if !errors.Is(ErrCircuitOpen, domain.ErrUnavailable) {
		t.Fatal("open circuit should surface as ErrUnavailable")
	}
}
