package factory

import (
	"strings"
	"testing"
	"time"
)

type planner struct {
	Seed   int64
	Budget time.Duration
}

type plannerConf struct {
	Seed   int64         `json:"seed"`
	Budget time.Duration `json:"budget"`
}

func plannerFactory(conf map[string]any) (*planner, error) {
	var c plannerConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &planner{Seed: c.Seed, Budget: c.Budget}, nil
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*planner]()
	if err := reg.Register("random", plannerFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "random", Conf: map[string]any{"seed": 3, "budget": "250ms"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Seed != 3 || inst.Budget != 250*time.Millisecond {
		t.Fatalf("unexpected instance %+v", inst)
	}
}

func TestDecodeWeakTypes(t *testing.T) {
	var c plannerConf
	if err := Decode(map[string]any{"seed": "42"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Seed != 42 {
		t.Fatalf("expected 42 got %d", c.Seed)
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	_, err := reg.Create(ModuleConfig{Type: "y"})
	if err == nil || !strings.Contains(err.Error(), "x") {
		t.Fatalf("expected unknown type error listing known types, got %v", err)
	}
	if got := reg.Names(); len(got) != 1 || got[0] != "x" {
		t.Fatalf("unexpected names %v", got)
	}
}
