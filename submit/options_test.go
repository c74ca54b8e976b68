package submit

import (
	"testing"
	"time"
)

func TestWithAwait_NonPositiveKeepsDefaults(t *testing.T) {
	s := New(nil, WithAwait(0, 0))
	if s.pollInterval != 200*time.Millisecond || s.awaitTimeout != 60*time.Second {
		t.Fatalf("zero values replaced the defaults: interval %s, total %s", s.pollInterval, s.awaitTimeout)
	}

	s = New(nil, WithAwait(-time.Second, 5*time.Second))
	if s.pollInterval != 200*time.Millisecond || s.awaitTimeout != 5*time.Second {
		t.Fatalf("unexpected await settings: interval %s, total %s", s.pollInterval, s.awaitTimeout)
	}
}
