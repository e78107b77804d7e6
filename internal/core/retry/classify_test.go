package retry

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect Class
	}{
		{errors.New("connection refused"), ClassTransient},
		{errors.New("request timed out"), ClassTransient},
		{errors.New("service unavailable"), ClassTransient},
		{errors.New("connection reset by peer"), ClassTransient},
		{errors.New("rate limit exceeded"), ClassResource},
		{errors.New("429 Too Many Requests"), ClassResource},
		{errors.New("daily quota exhausted"), ClassResource},
		{errors.New("model overloaded"), ClassResource},
		{errors.New("401 Unauthorized"), ClassPermanent},
		{errors.New("403 Forbidden"), ClassPermanent},
		{errors.New("invalid request body"), ClassPermanent},
		{errors.New("document not found"), ClassPermanent},
		{errors.New("malformed query"), ClassPermanent},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestClassify_UnknownDefaultsToTransient(t *testing.T) {
	if got := Classify(errors.New("something entirely novel happened")); got != ClassTransient {
		t.Errorf("unknown error classified as %v, want transient", got)
	}
}

func TestClassify_NilError(t *testing.T) {
	if got := Classify(nil); got != ClassTransient {
		t.Errorf("Classify(nil) = %v, want transient", got)
	}
}
