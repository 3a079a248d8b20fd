package http1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/fake"
)

const (
	formPost = "POST /form HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: 5\r\n\r\na=b&c"
	jsonPost = "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Type: application/json\r\nContent-Length: 11\r\n\r\n{\"k\":\"v12\"}"
	getReq   = "GET /index?q=1 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
)

// decoded is the comparable view of a surfaced entity.
type decoded struct {
	Method, URI, Body string
	Strategy          BodyStrategy
}

// feed delivers chunks one by one, draining Decode after each like a read
// worker does, and returns every surfaced entity.
func feed(t *testing.T, p *Protocol, chunks ...string) []*Entity {
	t.Helper()
	s := fake.NewSession[*Entity](1, nil)
	var buf bytes.Buffer
	var out []*Entity
	for _, c := range chunks {
		buf.WriteString(c)
		for {
			e, ok, err := p.Decode(&buf, s, false)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !ok {
				break
			}
			out = append(out, e)
		}
	}
	return out
}

func view(t *testing.T, es []*Entity) []decoded {
	t.Helper()
	out := make([]decoded, 0, len(es))
	for _, e := range es {
		d := decoded{Method: e.Method, URI: e.URI, Strategy: e.Strategy()}
		switch e.Strategy() {
		case BodyBlock:
			d.Body = string(e.Body())
		case BodyStream:
			if !e.Stream().Done() {
				t.Fatalf("stream for %s not complete", e.URI)
			}
			b, err := io.ReadAll(e.Stream())
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			d.Body = string(b)
		}
		out = append(out, d)
	}
	return out
}

func split(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	return append(out, s)
}

func TestFormPostExample(t *testing.T) {
	p := New()
	s := fake.NewSession[*Entity](1, nil)
	var buf bytes.Buffer

	buf.WriteString("POST / HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: 5\r\n\r\na")
	if e, ok, err := p.Decode(&buf, s, false); ok || err != nil {
		t.Fatalf("first chunk: ok=%v err=%v entity=%v", ok, err, e)
	}
	if p.InFlight() == nil || p.InFlight().Part() != PartBody {
		t.Fatal("expected an in-flight entity in BODY")
	}

	buf.WriteString("=b&c")
	e, ok, err := p.Decode(&buf, s, false)
	if err != nil || !ok {
		t.Fatalf("second chunk: ok=%v err=%v", ok, err)
	}
	if got := string(e.Body()); got != "a=b&c" {
		t.Errorf("body = %q", got)
	}
	if e.Strategy() != BodyBlock || e.Part() != PartEnd {
		t.Errorf("strategy=%v part=%v", e.Strategy(), e.Part())
	}
	if e.Session() != api.Session(s) {
		t.Error("entity lost its session")
	}
	if p.InFlight() != nil {
		t.Error("attachment not cleared after END")
	}
	if _, ok, _ := p.Decode(&buf, s, false); ok {
		t.Error("second message surfaced")
	}
}

func TestGetExample(t *testing.T) {
	p := New()
	got := feed(t, p, "GET / HTTP/1.1\r\n\r\n")
	if len(got) != 1 {
		t.Fatalf("got %d messages", len(got))
	}
	e := got[0]
	if e.Method != "GET" || e.URI != "/" || e.Proto != "HTTP/1.1" {
		t.Errorf("request line = %q %q %q", e.Method, e.URI, e.Proto)
	}
	if e.Strategy() != BodyNone || len(e.Body()) != 0 || e.Stream() != nil {
		t.Error("GET carries a body")
	}
	if p.InFlight() != nil {
		t.Error("attachment not cleared")
	}
}

func TestChunkSplitMatchesSingleChunk(t *testing.T) {
	inputs := map[string]string{
		"get":       getReq,
		"form":      formPost,
		"stream":    jsonPost,
		"pipelined": getReq + formPost + jsonPost + getReq,
		"zero-post": "POST /empty HTTP/1.1\r\nContent-Length: 0\r\n\r\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			want := view(t, feed(t, New(), in))
			if len(want) == 0 {
				t.Fatal("single chunk produced no message")
			}
			for size := 1; size <= len(in); size++ {
				p := New()
				got := view(t, feed(t, p, split(in, size)...))
				if fmt.Sprint(got) != fmt.Sprint(want) {
					t.Fatalf("chunk size %d:\n got %v\nwant %v", size, got, want)
				}
				if p.InFlight() != nil {
					t.Fatalf("chunk size %d: attachment leaked", size)
				}
			}
		})
	}
}

func TestZeroLengthPostEmitsImmediately(t *testing.T) {
	got := feed(t, New(), "POST /x HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: 0\r\n\r\n")
	if len(got) != 1 || got[0].Strategy() != BodyNone || len(got[0].Body()) != 0 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestMethodComparedCaseInsensitively(t *testing.T) {
	p := New()
	got := feed(t, p, "post / HTTP/1.1\r\ncontent-type: application/x-www-form-urlencoded; charset=utf-8\r\ncontent-length: 2\r\n\r\n")
	if len(got) != 0 {
		t.Fatal("form post surfaced before its body")
	}
	got = feed(t, p, "ok")
	if len(got) != 1 || string(got[0].Body()) != "ok" {
		t.Fatalf("got %v", got)
	}
	if got[0].Get("Content-Type") == "" || got[0].Header["Content-Length"] == nil {
		t.Error("header keys not canonicalized")
	}
}

func TestStreamPostSurfacesAtHead(t *testing.T) {
	p := New()
	head := "POST /up HTTP/1.1\r\nContent-Type: application/octet-stream\r\nContent-Length: 6\r\n\r\n"

	got := feed(t, p, head+"ab")
	if len(got) != 1 {
		t.Fatalf("expected the head to surface, got %d messages", len(got))
	}
	e := got[0]
	if e.Strategy() != BodyStream || e.Stream() == nil || e.Stream().Size() != 6 {
		t.Fatalf("strategy=%v stream=%v", e.Strategy(), e.Stream())
	}
	if e.Stream().Done() {
		t.Fatal("stream done before the body arrived")
	}

	if more := feed(t, p, "cdef"); len(more) != 0 {
		t.Fatalf("body completion surfaced %d more messages", len(more))
	}
	if p.InFlight() != nil {
		t.Error("attachment not cleared after the body")
	}
	b, err := io.ReadAll(e.Stream())
	if err != nil || string(b) != "abcdef" {
		t.Errorf("stream = %q, %v", b, err)
	}

	// the connection is ready for the next request
	next := feed(t, p, getReq)
	if len(next) != 1 || next[0].Method != "GET" {
		t.Fatalf("next request: %v", next)
	}
}

func TestStreamSpillKeepsOrder(t *testing.T) {
	p := New()
	body := make([]byte, streamQueueSize*3)
	for i := range body {
		body[i] = byte('a' + i%26)
	}
	head := fmt.Sprintf("POST /big HTTP/1.1\r\nContent-Length: %d\r\n\r\n", len(body))
	chunks := append([]string{head}, split(string(body), 1)...)
	got := feed(t, p, chunks...)
	if len(got) != 1 {
		t.Fatalf("got %d messages", len(got))
	}
	b, err := io.ReadAll(got[0].Stream())
	if err != nil || !bytes.Equal(b, body) {
		t.Errorf("stream mismatch: %v", err)
	}
}

func TestStateResetsBetweenRequests(t *testing.T) {
	p := New()
	first := feed(t, p, formPost)
	second := feed(t, p, "GET /two HTTP/1.1\r\n\r\n")
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d and %d messages", len(first), len(second))
	}
	if first[0] == second[0] {
		t.Fatal("entity reused across requests")
	}
	if second[0].ContentLength != 0 || second[0].ContentType != "" || second[0].Header["Content-Type"] != nil {
		t.Errorf("state leaked into the second request: %+v", second[0])
	}
}

func TestLeadingBlankLinesIgnored(t *testing.T) {
	got := feed(t, New(), "\r\n\r\n"+getReq)
	if len(got) != 1 || got[0].URI != "/index?q=1" {
		t.Fatalf("got %v", got)
	}
}

func TestReleaseMidBody(t *testing.T) {
	p := New()
	got := feed(t, p, "POST /up HTTP/1.1\r\nContent-Length: 10\r\n\r\n12345")
	if len(got) != 1 {
		t.Fatalf("got %d messages", len(got))
	}
	p.Release()
	if p.InFlight() != nil {
		t.Fatal("attachment survived Release")
	}
	b, err := io.ReadAll(got[0].Stream())
	if !errors.Is(err, ErrBodyAborted) {
		t.Errorf("expected ErrBodyAborted, got %v", err)
	}
	if string(b) != "12345" {
		t.Errorf("bytes before abort = %q", b)
	}

	// form bodies are simply dropped
	p = New()
	feed(t, p, formPost[:len(formPost)-2])
	p.Release()
	if p.InFlight() != nil {
		t.Error("form attachment survived Release")
	}
	p.Release()
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		input string
		eof   bool
		cause error
		code  api.ErrorCode
	}{
		{"chunked post", nil, "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n", false, ErrContentLength, api.ErrCodeContractViolation},
		{"bad request line", nil, "GARBAGE\r\n\r\n", false, ErrMalformedRequest, api.ErrCodeMalformedRequest},
		{"bad version", nil, "GET / SPDY/3\r\n\r\n", false, ErrMalformedRequest, api.ErrCodeMalformedRequest},
		{"header without colon", nil, "GET / HTTP/1.1\r\nNoColon\r\n\r\n", false, ErrMalformedRequest, api.ErrCodeMalformedRequest},
		{"negative length", nil, "POST / HTTP/1.1\r\nContent-Length: -4\r\n\r\n", false, ErrMalformedRequest, api.ErrCodeMalformedRequest},
		{"conflicting lengths", nil, "POST / HTTP/1.1\r\nContent-Length: 4\r\nContent-Length: 5\r\n\r\n", false, ErrMalformedRequest, api.ErrCodeMalformedRequest},
		{"header too large", []Option{WithMaxHeaderSize(32)}, "GET /" + string(bytes.Repeat([]byte("a"), 64)), false, ErrHeaderTooLarge, api.ErrCodeMalformedRequest},
		{"form body too large", []Option{WithMaxBlockBody(4)}, formPost, false, ErrBodyTooLarge, api.ErrCodeResourceExhausted},
		{"eof in head", nil, "GET / HTTP/1.1\r\nHost", true, ErrUnexpectedEOF, api.ErrCodeMalformedRequest},
		{"eof in body", nil, formPost[:len(formPost)-1], true, ErrUnexpectedEOF, api.ErrCodeMalformedRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.opts...)
			s := fake.NewSession[*Entity](1, nil)
			buf := bytes.NewBufferString(tt.input)
			var err error
			for i := 0; i < 4 && err == nil; i++ {
				_, _, err = p.Decode(buf, s, tt.eof)
			}
			if !errors.Is(err, tt.cause) {
				t.Fatalf("expected %v, got %v", tt.cause, err)
			}
			if got := api.CodeOf(err); got != tt.code {
				t.Errorf("code = %v, want %v", got, tt.code)
			}
			if p.InFlight() != nil {
				t.Error("attachment not cleared after error")
			}
		})
	}
}

func TestEOFBetweenRequestsIsClean(t *testing.T) {
	p := New()
	s := fake.NewSession[*Entity](1, nil)
	var buf bytes.Buffer
	if _, ok, err := p.Decode(&buf, s, true); ok || err != nil {
		t.Errorf("empty eof: ok=%v err=%v", ok, err)
	}
	buf.WriteString(getReq)
	if _, ok, err := p.Decode(&buf, s, true); !ok || err != nil {
		t.Errorf("complete request at eof: ok=%v err=%v", ok, err)
	}
}

func TestStaleEntityDiscarded(t *testing.T) {
	p := New()
	s := fake.NewSession[*Entity](1, nil)
	stale := newEntity(s, 0)
	stale.part = PartEnd
	p.entity = stale

	buf := bytes.NewBufferString(getReq)
	e, ok, err := p.Decode(buf, s, false)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if e == stale || e.Method != "GET" {
		t.Errorf("stale entity surfaced: %+v", e)
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	e := newEntity(nil, 0)
	if err := e.advance(PartBody); err != nil {
		t.Fatal(err)
	}
	err := e.advance(PartHead)
	if !errors.Is(err, ErrStateRegression) || api.CodeOf(err) != api.ErrCodeContractViolation {
		t.Errorf("regression error = %v", err)
	}
	if e.Part() != PartBody {
		t.Errorf("part = %v", e.Part())
	}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		ct   string
		cl   int64
		want BodyStrategy
		err  bool
	}{
		{"application/x-www-form-urlencoded", 5, BodyBlock, false},
		{"application/x-www-form-urlencoded; charset=utf-8", 1, BodyBlock, false},
		{"application/json", 5, BodyStream, false},
		{"", 5, BodyStream, false},
		{"APPLICATION/X-WWW-FORM-URLENCODED", 5, BodyStream, false},
		{"application/x-www-form-urlencoded", 0, BodyNone, true},
		{"application/x-www-form-urlencoded", -1, BodyNone, true},
	}
	for _, tt := range tests {
		got, err := SelectStrategy(tt.ct, tt.cl)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("SelectStrategy(%q, %d) = %v, %v", tt.ct, tt.cl, got, err)
		}
		if err != nil && !errors.Is(err, api.NewError(api.ErrCodeContractViolation, "")) {
			t.Errorf("error %v is not a contract violation", err)
		}
	}
	if !BodyBlock.WaitForBody() || BodyStream.WaitForBody() {
		t.Error("WaitForBody mismatch")
	}
}

func TestDelimiterScannerResumes(t *testing.T) {
	d := NewDelimiterScanner([]byte("\r\n\r\n"), 0)
	buf := []byte("abc\r\n\r")
	if _, found, _ := d.Scan(buf); found {
		t.Fatal("found a partial delimiter")
	}
	if d.Scanned() != len(buf) {
		t.Errorf("scanned %d", d.Scanned())
	}
	buf = append(buf, '\n', 'x')
	end, found, err := d.Scan(buf)
	if err != nil || !found || end != len("abc\r\n\r\n") {
		t.Fatalf("end=%d found=%v err=%v", end, found, err)
	}
	if d.Scanned() != 0 {
		t.Error("scanner not reset after a match")
	}

	d = NewDelimiterScanner([]byte("\r\n\r\n"), 0)
	if end, found, _ := d.Scan([]byte("\r\n\r\r\n\r\n")); !found || end != 7 {
		t.Errorf("overlapping prefix: end=%d found=%v", end, found)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := New().Encode(nil, nil); !errors.Is(err, api.ErrNoEncoder) {
		t.Errorf("Encode: %v", err)
	}
	if Factory()() == Factory()() {
		t.Error("factory returned a shared instance")
	}
}
