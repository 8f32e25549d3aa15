package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// PendingRedirect is a one-shot future for the OAuth redirect expected by an
// in-flight login. It subscribes to a URISource, settles exactly once on the
// first redirect (or cancellation), and unsubscribes itself upon settlement.
type PendingRedirect struct {
	mu          sync.Mutex
	settled     bool
	uri         *url.URL
	err         error
	done        chan struct{}
	unsubscribe func()
}

// ListenRedirect arms a pending redirect against the given source. The
// returned value must be consumed with Await or released with Cancel.
func ListenRedirect(source URISource) *PendingRedirect {
	p := &PendingRedirect{done: make(chan struct{})}
	p.unsubscribe = source.Subscribe(p.settle)
	return p
}

// settle resolves the future with the first redirect URI. Later calls are
// ignored.
func (p *PendingRedirect) settle(uri *url.URL) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.uri = uri
	unsubscribe := p.unsubscribe
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(p.done)
}

// reject resolves the future with an error. Later calls are ignored.
func (p *PendingRedirect) reject(err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.err = err
	unsubscribe := p.unsubscribe
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(p.done)
}

// Cancel abandons the pending redirect. Await returns ErrLoginCancelled if
// no redirect arrived first.
func (p *PendingRedirect) Cancel() {
	p.reject(ErrLoginCancelled)
}

// Await blocks until a redirect arrives, the future is cancelled, or the
// context ends. A context deadline surfaces as the context cause so callers
// can distinguish timeout from user cancellation. A plain cancellation,
// where the cause is just context.Canceled, means the caller abandoned the
// login and is reported as ErrLoginCancelled.
func (p *PendingRedirect) Await(ctx context.Context) (*url.URL, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if errors.Is(cause, context.Canceled) {
			cause = ErrLoginCancelled
		}
		p.reject(cause)
		<-p.done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.uri, nil
}
