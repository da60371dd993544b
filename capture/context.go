package capture

import (
	"context"
	"net/http"
	"slices"
	"sync"
)

type exchangeKey struct{}

// exchangeState is the capture context of one in-flight exchange. The
// middleware installs it and the handler reports into it.
type exchangeState struct {
	mu    sync.Mutex
	skip  bool
	types []string
}

func withExchange(r *http.Request) (*http.Request, *exchangeState) {
	st := &exchangeState{}
	return r.WithContext(context.WithValue(r.Context(), exchangeKey{}, st)), st
}

func exchangeFrom(ctx context.Context) *exchangeState {
	st, _ := ctx.Value(exchangeKey{}).(*exchangeState)
	return st
}

// Skip opts the current exchange out of capture. It is a no-op when the
// request is not being captured.
func Skip(r *http.Request) {
	if st := exchangeFrom(r.Context()); st != nil {
		st.mu.Lock()
		st.skip = true
		st.mu.Unlock()
	}
}

// Bind reports the request types a handler bound from the request, in
// declaration order. Handle calls it automatically; plain handlers that
// decode their own input may call it to get annotation and rule driven
// documentation.
func Bind(r *http.Request, typeNames ...string) {
	if st := exchangeFrom(r.Context()); st != nil {
		st.mu.Lock()
		st.types = append(st.types, typeNames...)
		st.mu.Unlock()
	}
}

// Capturing reports whether the request is being captured.
func Capturing(r *http.Request) bool {
	return exchangeFrom(r.Context()) != nil
}

func (s *exchangeState) skipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip
}

func (s *exchangeState) boundTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.types)
}
