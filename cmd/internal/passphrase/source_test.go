package passphrase

import (
	"errors"
	"testing"
)

func fakeSource(env map[string]string, tty bool, typed string, readErr error) *Source {
	s := NewSource("VAULTSWAP_PASS", "")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return tty }
	reads := 0
	s.readPassword = func() ([]byte, error) {
		reads++
		if reads > 1 {
			return nil, errors.New("prompted twice")
		}
		return []byte(typed), readErr
	}
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := fakeSource(map[string]string{"VAULTSWAP_PASS": " s3cret "}, true, "typed", nil)
	got, err := s.Get()
	if err != nil || got != " s3cret " {
		t.Fatalf("Get() = %q, %v", got, err)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	s := fakeSource(map[string]string{"VAULTSWAP_PASS": "  "}, true, "typed", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error for blank env value")
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	s := fakeSource(nil, true, "typed", nil)
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "typed" {
			t.Fatalf("Get() #%d = %q, %v", i, got, err)
		}
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	s := fakeSource(nil, false, "", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
}

func TestSourceRejectsBlankPrompt(t *testing.T) {
	s := fakeSource(nil, true, "   ", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error for blank passphrase")
	}
}
