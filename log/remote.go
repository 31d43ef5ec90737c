package log

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
)

type op struct {
	uri  string
	mime string
	d    []byte
}

const (
	// how long to wait before we resume sending logs to the server
	// after a failure. doesn't affect logging to files
	throttleTimeout = time.Second * 15

	pathLog   = "/api/v1/log"
	pathEvent = "/api/v1/event"

	mimePlainText = "text/plain"
)

type remote struct {
	server        string
	apiKey        string
	ch            chan op
	done          chan struct{}
	throttleUntil time.Time
	mu            sync.Mutex
}

var (
	remoteMu  sync.Mutex
	remoteLog *remote
)

// logs failures of sending to stderr, not to the log, to avoid a loop
func logfLocal(s string, args ...any) {
	fmt.Fprintf(os.Stderr, s, args...)
}

func startRemote(server, apiKey string) {
	if server == "" {
		return
	}
	remoteMu.Lock()
	defer remoteMu.Unlock()
	if remoteLog != nil {
		return
	}
	remoteLog = &remote{
		server: server,
		apiKey: apiKey,
		ch:     make(chan op, 1000),
		done:   make(chan struct{}),
	}
	go remoteLog.worker()
}

// stopRemote waits until queued logs are sent
func stopRemote() {
	remoteMu.Lock()
	r := remoteLog
	remoteLog = nil
	remoteMu.Unlock()
	if r == nil {
		return
	}
	close(r.ch)
	<-r.done
}

func (r *remote) isThrottled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.throttleUntil)
}

func (r *remote) throttle() {
	r.mu.Lock()
	r.throttleUntil = time.Now().Add(throttleTimeout)
	r.mu.Unlock()
}

func (r *remote) worker() {
	defer close(r.done)
	for op := range r.ch {
		if r.isThrottled() {
			continue
		}
		rb := requests.
			URL(op.uri).
			BodyBytes(op.d).
			ContentType(op.mime)
		if r.apiKey != "" {
			rb = rb.Header("X-Api-Key", r.apiKey)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		err := rb.Fetch(ctx)
		cancel()
		if err != nil {
			logfLocal("log: POST %s failed: %v, will throttle for %s\n", op.uri, err, throttleTimeout)
			r.throttle()
		}
	}
}

func sendRemote(uriPath string, d []byte, mime string) {
	remoteMu.Lock()
	defer remoteMu.Unlock()
	r := remoteLog
	if r == nil || r.isThrottled() {
		return
	}
	o := op{
		uri:  "http://" + r.server + uriPath,
		mime: mime,
		d:    d,
	}
	select {
	case r.ch <- o:
	default:
		logfLocal("log: POST %s dropped: channel full\n", o.uri)
	}
}
