package nettap

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a response body the tap retains.
const maxBodyBytes = 2 << 20

// Tap subscribes to a page's CDP network events and fills a Buffer. One tap
// serves exactly one page session; it dies with the page.
type Tap struct {
	buf    *Buffer
	logger *zap.Logger
	cancel context.CancelFunc
}

// Attach enables network events on the page and starts collecting into a
// fresh buffer. The returned Tap stops when the context is cancelled or
// Close is called.
func Attach(ctx context.Context, page *rod.Page, logger *zap.Logger) (*Tap, error) {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, err
	}

	tapCtx, cancel := context.WithCancel(ctx)
	t := &Tap{buf: NewBuffer(), logger: logger, cancel: cancel}

	wait := page.Context(tapCtx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request == nil {
				return
			}
			headers := make(map[string]string, len(ev.Request.Headers))
			for k, v := range ev.Request.Headers {
				headers[k] = v.Str()
			}
			t.buf.AddRequest(CapturedRequest{
				URL:     ev.Request.URL,
				Method:  ev.Request.Method,
				Headers: headers,
			})
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			t.capture(page, ev)
		},
	)
	go wait()

	return t, nil
}

// Buffer returns the tap's buffer. The buffer outlives individual
// leaderboard visits but not the page session.
func (t *Tap) Buffer() *Buffer { return t.buf }

// Close stops event collection.
func (t *Tap) Close() { t.cancel() }

// capture fetches the response body and classifies it. Everything here is
// best-effort: a body that cannot be fetched or parsed is dropped without
// surfacing an error into the page session.
func (t *Tap) capture(page *rod.Page, ev *proto.NetworkResponseReceived) {
	defer func() {
		if r := recover(); r != nil && t.logger != nil {
			t.logger.Debug("network tap recovered", zap.Any("panic", r))
		}
	}()

	kind, ok := kindForMIME(ev.Response.MIMEType, ev.Response.URL)
	if !ok {
		return
	}

	body, err := proto.NetworkGetResponseBody{RequestID: ev.RequestID}.Call(page)
	if err != nil || body == nil || body.Body == "" {
		return
	}
	payload := body.Body
	if len(payload) > maxBodyBytes {
		payload = payload[:maxBodyBytes]
	}

	resp := CapturedResponse{
		URL:         ev.Response.URL,
		Status:      ev.Response.Status,
		ContentType: ev.Response.MIMEType,
		Body:        payload,
		Kind:        kind,
		Period:      ClassifyPeriod(ev.Response.URL, payload),
		CapturedAt:  time.Now(),
	}

	switch kind {
	case KindJSON:
		resp.LooksLikeLeaderboard = LooksLikeLeaderboardJSON(payload)
	case KindJS:
		for _, doc := range ExtractJSONFromJS(payload) {
			if LooksLikeLeaderboardJSON(doc) {
				resp.LooksLikeLeaderboard = true
				break
			}
		}
	case KindText:
		for _, doc := range ExtractJSONFromHTML(payload) {
			if LooksLikeLeaderboardJSON(doc) {
				resp.LooksLikeLeaderboard = true
				break
			}
		}
	}

	t.buf.Add(resp)
}

func kindForMIME(mime, url string) (ResponseKind, bool) {
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "json"):
		return KindJSON, true
	case strings.Contains(m, "javascript") || strings.Contains(m, "ecmascript"):
		return KindJS, true
	case strings.Contains(m, "text/html") || strings.Contains(m, "text/plain"):
		return KindText, true
	case m == "" && LeaderboardShapedURL(url):
		return KindJSON, true
	}
	return "", false
}
