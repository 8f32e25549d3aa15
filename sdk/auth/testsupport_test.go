package auth

import (
	"net/url"
	"sync"
)

// memorySecrets is an in-memory SecretStore for tests.
type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string

	getErr error
	setErr error
}

func newMemorySecrets() *memorySecrets {
	return &memorySecrets{values: make(map[string]string)}
}

func (m *memorySecrets) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memorySecrets) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memorySecrets) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// fakeEnvironment records host interactions for tests.
type fakeEnvironment struct {
	mu        sync.Mutex
	opened    []string
	warnings  []string
	actions   [][]string
	answer    string
	answerErr error

	externalURI func(uri string) (string, error)
	onOpen      func(uri string)
}

func (f *fakeEnvironment) OpenExternal(uri string) error {
	f.mu.Lock()
	f.opened = append(f.opened, uri)
	onOpen := f.onOpen
	f.mu.Unlock()
	if onOpen != nil {
		onOpen(uri)
	}
	return nil
}

func (f *fakeEnvironment) AsExternalURI(uri string) (string, error) {
	if f.externalURI != nil {
		return f.externalURI(uri)
	}
	return uri, nil
}

func (f *fakeEnvironment) ShowWarning(message string, items ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, message)
	f.actions = append(f.actions, items)
	return f.answer, f.answerErr
}

func (f *fakeEnvironment) openedURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *fakeEnvironment) shownWarnings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.warnings...)
}

// fakeURISource lets tests push redirect URIs by hand.
type fakeURISource struct {
	mu       sync.Mutex
	handlers []func(*url.URL)
}

func (f *fakeURISource) Subscribe(handler func(*url.URL)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	index := len(f.handlers) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if index < len(f.handlers) {
			f.handlers[index] = nil
		}
	}
}

func (f *fakeURISource) push(raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	handlers := append([]func(*url.URL){}, f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(u)
		}
	}
}
