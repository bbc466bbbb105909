package settings

import (
	"errors"
	"strings"
	"testing"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) ReadFile(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memStore) WriteFile(name string, data []byte) error {
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Remove(name string) error {
	if _, ok := m.files[name]; !ok {
		return errors.New("not found")
	}
	delete(m.files, name)
	return nil
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := newMemStore()
	want := Credentials{Name: "attic", Secret: "hunter2"}
	if err := SaveCredentials(s, want); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	if raw := string(s.files[CredsFile]); raw != "attic\nhunter2" {
		t.Fatalf("stored bytes = %q; want %q", raw, "attic\nhunter2")
	}

	got, err := LoadCredentials(s)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got != want {
		t.Fatalf("LoadCredentials = %+v; want %+v", got, want)
	}
}

func TestCredentialsMissing(t *testing.T) {
	_, err := LoadCredentials(newMemStore())
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("LoadCredentials on empty store err = %v; want ErrNoCredentials", err)
	}
}

func TestCredentialsEmptySecret(t *testing.T) {
	s := newMemStore()
	if err := SaveCredentials(s, Credentials{Name: "open-net"}); err != nil {
		t.Fatalf("SaveCredentials open network: %v", err)
	}
	got, err := LoadCredentials(s)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got.Name != "open-net" || got.Secret != "" {
		t.Fatalf("LoadCredentials = %+v; want open-net with empty secret", got)
	}
}

func TestSaveCredentialsRejects(t *testing.T) {
	tcs := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{name: "empty name", creds: Credentials{Secret: "x"}, want: ErrEmptyName},
		{name: "newline in name", creds: Credentials{Name: "a\nb", Secret: "x"}, want: ErrFieldNewline},
		{name: "newline in secret", creds: Credentials{Name: "a", Secret: "x\ny"}, want: ErrFieldNewline},
		{name: "cr in secret", creds: Credentials{Name: "a", Secret: "x\ry"}, want: ErrFieldNewline},
		{name: "long name", creds: Credentials{Name: strings.Repeat("n", MaxFieldLen+1), Secret: "x"}, want: ErrFieldTooLong},
		{name: "long secret", creds: Credentials{Name: "a", Secret: strings.Repeat("s", MaxFieldLen+1)}, want: ErrFieldTooLong},
	}
	for _, tc := range tcs {
		s := newMemStore()
		err := SaveCredentials(s, tc.creds)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v; want %v", tc.name, err, tc.want)
		}
		if _, ok := s.files[CredsFile]; ok {
			t.Fatalf("%s: rejected save still wrote file", tc.name)
		}
	}
}

func TestLoadCredentialsMalformed(t *testing.T) {
	s := newMemStore()
	s.files[CredsFile] = []byte("no-newline-here")
	if _, err := LoadCredentials(s); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v; want ErrMalformed", err)
	}

	s.files[CredsFile] = []byte("\nsecret-only")
	if _, err := LoadCredentials(s); !errors.Is(err, ErrMalformed) {
		t.Fatalf("empty name err = %v; want ErrMalformed", err)
	}
}

func TestClearCredentials(t *testing.T) {
	s := newMemStore()
	if err := SaveCredentials(s, Credentials{Name: "a", Secret: "b"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	if err := ClearCredentials(s); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if _, err := LoadCredentials(s); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("after clear err = %v; want ErrNoCredentials", err)
	}

	// Clearing again is a no-op.
	if err := ClearCredentials(s); err != nil {
		t.Fatalf("ClearCredentials on empty store: %v", err)
	}
}

func TestZoneRoundTrip(t *testing.T) {
	s := newMemStore()
	if got := LoadZone(s); got != 0 {
		t.Fatalf("LoadZone default = %d; want 0", got)
	}
	if err := SaveZone(s, -330); err != nil {
		t.Fatalf("SaveZone: %v", err)
	}
	if got := LoadZone(s); got != -330 {
		t.Fatalf("LoadZone = %d; want -330", got)
	}

	s.files[ZoneFile] = []byte("garbage")
	if got := LoadZone(s); got != 0 {
		t.Fatalf("LoadZone on garbage = %d; want 0", got)
	}
}
