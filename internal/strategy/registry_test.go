package strategy

import (
	"errors"
	"testing"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/broker"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/scenario"
	"go.uber.org/zap"
)

type mockStrategy struct {
	Standard
	name string
}

func (m *mockStrategy) Name() string { return m.name }
func (m *mockStrategy) Start(*backtest.Env) error { return nil }
func (m *mockStrategy) MinPeriod() int { return 1 }
func (m *mockStrategy) Next(*backtest.Env) error { return nil }

func mockFactory(name string) Factory {
	return func(scene scenario.Scene, logger *zap.Logger) (backtest.Strategy, error) {
		return &mockStrategy{Standard: NewStandard(scene, logger), name: name}, nil
	}
}

func defaultScene(t *testing.T, strategy string) scenario.Scene {
	t.Helper()
	set := scenario.NewSet()
	set.Override(map[string]any{"strategy": strategy})
	scenes, err := scenario.Expand(set)
	if err != nil {
		t.Fatal(err)
	}
	return scenes[0]
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", mockFactory("b"))
	reg.Register("a", mockFactory("a"))

	names := reg.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}

	s, err := reg.New(defaultScene(t, "b"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Name() != "b" {
		t.Errorf("Name() = %s, want b", s.Name())
	}
}

func TestRegistry_Unknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.New(defaultScene(t, "nope"))
	if !errors.Is(err, core.ErrStrategyUnknown) {
		t.Errorf("expected ErrStrategyUnknown, got %v", err)
	}
}

func TestStandard_TracksOrders(t *testing.T) {
	s := NewStandard(defaultScene(t, "x"), nil)
	s.Track([]broker.Order{{Ref: 1, Status: broker.OrderStatusPending}, {Ref: 2, Status: broker.OrderStatusPending}})
	if !s.Busy() {
		t.Fatal("expected busy after Track")
	}

	s.NotifyOrder(nil, broker.Order{Ref: 1, Status: broker.OrderStatusFilled})
	if !s.Busy() {
		t.Error("one order still live")
	}
	s.NotifyOrder(nil, broker.Order{Ref: 2, Status: broker.OrderStatusCancelled})
	if s.Busy() {
		t.Error("expected idle once all orders finished")
	}
}
