package line

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeSplitsOnCRLF(t *testing.T) {
	p := New(0)
	var buf bytes.Buffer
	var got []string
	for _, c := range []string{"Hi,Ser", "ver\r", "\nsecond\r\nthi", "rd\r\n"} {
		buf.WriteString(c)
		for {
			msg, ok, err := p.Decode(&buf, nil, false)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !ok {
				break
			}
			got = append(got, msg)
		}
	}
	want := []string{"Hi,Server", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
	if buf.Len() != 0 {
		t.Errorf("leftover %q", buf.String())
	}
}

func TestDecodeEOFFlushesPartialLine(t *testing.T) {
	p := New(0)
	buf := bytes.NewBufferString("tail")
	msg, ok, err := p.Decode(buf, nil, true)
	if err != nil || !ok || msg != "tail" {
		t.Errorf("got %q ok=%v err=%v", msg, ok, err)
	}
}

func TestDecodeLineTooLong(t *testing.T) {
	p := New(4)
	buf := bytes.NewBufferString("abcdefg")
	if _, _, err := p.Decode(buf, nil, false); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("expected ErrLineTooLong, got %v", err)
	}
}

func TestEncode(t *testing.T) {
	b, err := New(0).Encode("ping", nil)
	if err != nil || string(b) != "ping\r\n" {
		t.Errorf("Encode = %q, %v", b, err)
	}
}
