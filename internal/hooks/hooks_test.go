package hooks

import (
	"testing"

	"github.com/sunholo/quillmod/internal/module"
	"github.com/sunholo/quillmod/internal/strpool"
)

func newMod(name string) *module.Module {
	pool := strpool.New()
	return module.New(pool.Intern(name), "/tmp/"+name)
}

func TestPriorityOrdering(t *testing.T) {
	r := NewRegistry()
	var order []int
	r.RegisterGlobalHooks(GlobalHooks{
		BeforeInit: func(m *module.Module) (bool, error) { order = append(order, 2); return true, nil },
	}, 2)
	r.RegisterGlobalHooks(GlobalHooks{
		BeforeInit: func(m *module.Module) (bool, error) { order = append(order, 1); return true, nil },
	}, 1)

	m := newMod("x")
	if err := r.RunInit(m); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected priority 1 before 2, got %v", order)
	}
}

func TestInitHookRejectionAborts(t *testing.T) {
	r := NewRegistry()
	m := newMod("y")
	var afterRan bool
	r.SetHooks("y", ModuleHooks{
		OnInit: func(m *module.Module) (bool, error) { return false, nil },
	})
	r.RegisterGlobalHooks(GlobalHooks{
		AfterInit: func(m *module.Module) error { afterRan = true; return nil },
	}, 0)

	if err := r.RunInit(m); err == nil {
		t.Fatal("expected rejection error")
	}
	if afterRan {
		t.Fatal("AfterInit should not run once init is rejected")
	}
	stats := r.GetStats()
	if stats.Failures == 0 {
		t.Fatal("expected a recorded failure")
	}
}

func TestUnloadHooksNeverFail(t *testing.T) {
	r := NewRegistry()
	m := newMod("z")
	ran := false
	r.SetHooks("z", ModuleHooks{OnUnload: func(m *module.Module) { ran = true }})
	r.RunUnload(m)
	if !ran {
		t.Fatal("expected OnUnload to run")
	}
}

func TestRunFirstUseInvokesPerModuleHook(t *testing.T) {
	r := NewRegistry()
	m := newMod("lazy")
	ran := false
	r.SetHooks("lazy", ModuleHooks{OnFirstUse: func(m *module.Module) error { ran = true; return nil }})
	if err := r.RunFirstUse(m); err != nil {
		t.Fatalf("RunFirstUse error: %v", err)
	}
	if !ran {
		t.Fatal("expected OnFirstUse to run")
	}
}

func TestRunFirstUseNoHookIsNoop(t *testing.T) {
	r := NewRegistry()
	m := newMod("plain")
	if err := r.RunFirstUse(m); err != nil {
		t.Fatalf("RunFirstUse error: %v", err)
	}
}

func TestRunFirstUsePropagatesError(t *testing.T) {
	r := NewRegistry()
	m := newMod("failing")
	wantErr := errRejected{module: "failing"}
	r.SetHooks("failing", ModuleHooks{OnFirstUse: func(m *module.Module) error { return wantErr }})
	if err := r.RunFirstUse(m); err != wantErr {
		t.Fatalf("RunFirstUse error = %v, want %v", err, wantErr)
	}
	if stats := r.GetStats(); stats.Failures == 0 {
		t.Fatal("expected a recorded failure")
	}
}
