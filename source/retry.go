package source

import (
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRetries is how many times a failed hosting API request is repeated
const DefaultRetries = 10

// RetryTransport repeats requests that fail to connect or get a 5xx or 429 answer, waiting a little longer before
// each attempt. Requests whose body cannot be replayed, such as streamed file uploads, are sent once.
type RetryTransport struct {
	Base    http.RoundTripper
	Retries int
	Wait    time.Duration
	Logger  *logrus.Entry
}

// NewRetryClient returns an http.Client whose transport retries up to retries times
func NewRetryClient(retries int, wait time.Duration, logger *logrus.Entry) *http.Client {
	return &http.Client{Transport: &RetryTransport{Retries: retries, Wait: wait, Logger: logger}}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if attempt > t.Retries || !shouldRetry(req, resp, err) || !canReplay(req) {
			return resp, err
		}

		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if t.Logger != nil {
			t.Logger.Warnf("%s %s failed (attempt %d of %d), retrying", req.Method, req.URL.Redacted(), attempt, t.Retries+1)
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.Wait * time.Duration(attempt)):
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req = req.Clone(req.Context())
			req.Body = body
		}
	}
}

func shouldRetry(req *http.Request, resp *http.Response, err error) bool {
	if err != nil {
		return req.Context().Err() == nil
	}
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}

func canReplay(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}
