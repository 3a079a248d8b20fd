package api_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/momentics/hioload-nio/api"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *api.EngineConfig[string] {
		c := api.DefaultEngineConfig[string](true)
		c.ProtocolFactory = func() api.Protocol[string] { return nil }
		c.Processor = api.ProcessorFunc[string](func(api.TransportSession[string], string) error { return nil })
		return c
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := map[string]func(c *api.EngineConfig[string]){
		"network":        func(c *api.EngineConfig[string]) { c.Network = "udp" },
		"port":           func(c *api.EngineConfig[string]) { c.Port = 70000 },
		"client port":    func(c *api.EngineConfig[string]) { c.Server = false; c.Port = 0 },
		"threads":        func(c *api.EngineConfig[string]) { c.ThreadNum = 0 },
		"factory":        func(c *api.EngineConfig[string]) { c.ProtocolFactory = nil },
		"processor":      func(c *api.EngineConfig[string]) { c.Processor = nil },
		"select timeout": func(c *api.EngineConfig[string]) { c.SelectTimeout = 0 },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		if err := c.Validate(); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s: Validate = %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestConfigCloneAndOptions(t *testing.T) {
	f1 := api.FilterFuncs[string]{}
	c := api.DefaultEngineConfig[string](true)
	for _, o := range []api.Option[string]{
		api.WithHost[string]("10.1.2.3"),
		api.WithPort[string](9000),
		api.WithThreadNum[string](3),
		api.WithFilters[string](f1),
		api.WithCPUAffinity[string](true),
	} {
		o(c)
	}
	cp := c.Clone()
	c.Filters[0] = nil
	if cp.Host != "10.1.2.3" || cp.Port != 9000 || cp.ThreadNum != 3 || !cp.CPUAffinity {
		t.Errorf("clone = %+v", cp)
	}
	if cp.Filters[0] == nil {
		t.Error("clone shares the filter slice")
	}
	if cp.Logger == nil {
		t.Error("clone has no logger")
	}
}

func TestFilterChainOrder(t *testing.T) {
	var got []string
	mk := func(name string) api.Filter[string] {
		return api.FilterFuncs[string]{
			OnRead:    func(_ api.Session, m string) { got = append(got, name+":read:"+m) },
			OnProcess: func(_ api.Session, m string) { got = append(got, name+":process:"+m) },
			OnFail:    func(_ api.Session, m string, err error) { got = append(got, name+":fail:"+err.Error()) },
			OnWrite:   func(_ api.Session, n int) { got = append(got, fmt.Sprintf("%s:write:%d", name, n)) },
		}
	}
	chain := api.NewFilterChain(mk("a"), nil, mk("b"))
	if len(chain) != 2 {
		t.Fatalf("nil filter kept: %d", len(chain))
	}
	chain.ReadFilter(nil, "m")
	chain.ProcessFilter(nil, "m")
	chain.ProcessFail(nil, "m", errors.New("x"))
	chain.WriteFilter(nil, 3)
	want := "a:read:m b:read:m a:process:m b:process:m a:fail:x b:fail:x a:write:3 b:write:3"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v", got)
	}
}

func TestErrorCodes(t *testing.T) {
	sentinel := errors.New("bad length")
	err := fmt.Errorf("decode: %w", api.NewError(api.ErrCodeContractViolation, "strategy").
		WithContext("content_length", -1).Wrap(sentinel))

	if !errors.Is(err, sentinel) {
		t.Error("cause lost")
	}
	if !errors.Is(err, api.NewError(api.ErrCodeContractViolation, "")) {
		t.Error("code match failed")
	}
	if errors.Is(err, api.NewError(api.ErrCodeMalformedRequest, "")) {
		t.Error("matched the wrong code")
	}
	if api.CodeOf(err) != api.ErrCodeContractViolation {
		t.Errorf("CodeOf = %v", api.CodeOf(err))
	}
	if api.CodeOf(nil) != api.ErrCodeOK || api.CodeOf(sentinel) != api.ErrCodeInternal {
		t.Error("CodeOf fallbacks wrong")
	}
	if !strings.Contains(err.Error(), "content_length") {
		t.Errorf("context missing from %q", err.Error())
	}
}

func TestProcessorFuncSession(t *testing.T) {
	pf := api.ProcessorFunc[string](func(api.TransportSession[string], string) error { return nil })
	ms := pf.InitSession(nil)
	if _, err := ms.SendWithResponse("x"); !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("SendWithResponse = %v", err)
	}
	if ms.NotifySyncMessage("x") {
		t.Error("NotifySyncMessage consumed a message")
	}
}
