package agent

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewSystemRegistersAllWorkerTypes(t *testing.T) {
	coord := NewSystem(&fakeBackend{}, Options{}, zap.NewNop())
	reg := coord.Registry()

	for _, typ := range KnownTypes() {
		w, ok := reg.Lookup(typ)
		if !ok {
			t.Fatalf("type %s not registered", typ)
		}
		if w.Type() != typ {
			t.Fatalf("lookup(%s) returned %s", typ, w.Type())
		}
		if w.State() != StateIdle {
			t.Fatalf("worker %s starts in state %s", typ, w.State())
		}
	}

	all := reg.All()
	if len(all) != len(KnownTypes()) {
		t.Fatalf("registry holds %d workers, want %d", len(all), len(KnownTypes()))
	}
	if all[0].Type() != TypeCoordinator {
		t.Fatalf("first registered worker is %s, want coordinator", all[0].Type())
	}

	if w, _ := reg.Lookup(TypeCoordinator); w != Worker(coord) {
		t.Fatal("registered coordinator is not the returned instance")
	}
}

func TestRegistryLookupUnknownType(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if _, ok := reg.Lookup(WorkerType("poet")); ok {
		t.Fatal("lookup of unregistered type succeeded")
	}
}

func TestRegistryReRegistrationReplaces(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	first := NewResearchWorker(&fakeBackend{}, Options{}, zap.NewNop())
	second := NewResearchWorker(&fakeBackend{}, Options{}, zap.NewNop())

	reg.Register(first)
	reg.Register(second)

	if len(reg.All()) != 1 {
		t.Fatalf("registry holds %d workers, want 1", len(reg.All()))
	}
	if w, _ := reg.Lookup(TypeResearch); w == first {
		t.Fatal("re-registration did not replace the instance")
	}
}

func TestNewTaskDefaults(t *testing.T) {
	task := NewTask(TypeCoordinator, "do the thing", map[string]any{"k": "v"})
	if task.ID == "" {
		t.Fatal("task has no id")
	}
	if task.Type != TypeCoordinator {
		t.Fatalf("type = %s", task.Type)
	}
	if task.Priority != 1 {
		t.Fatalf("priority = %d, want 1", task.Priority)
	}
	if task.Input["k"] != "v" {
		t.Fatalf("input = %v", task.Input)
	}
}
