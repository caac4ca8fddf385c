package registry

import (
	"fmt"
	"testing"
)

// deviceEntry is a simple struct for testing
type deviceEntry struct {
	Name   string
	Status string
}

func TestBaseRegistry_Register(t *testing.T) {
	registry := NewBaseRegistry[deviceEntry]()

	tests := []struct {
		name    string
		key     string
		item    deviceEntry
		wantErr bool
	}{
		{
			name:    "register valid item",
			key:     "microwave",
			item:    deviceEntry{Name: "microwave", Status: "idle"},
			wantErr: false,
		},
		{
			name:    "register item with empty name",
			key:     "",
			item:    deviceEntry{Name: "unnamed"},
			wantErr: true,
		},
		{
			name:    "register duplicate item",
			key:     "microwave",
			item:    deviceEntry{Name: "microwave", Status: "running"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.key, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("BaseRegistry.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	registry := NewBaseRegistry[deviceEntry]()

	entry := deviceEntry{Name: "microwave", Status: "idle"}
	if err := registry.Register("microwave", entry); err != nil {
		t.Fatalf("Failed to register entry: %v", err)
	}

	got, ok := registry.Get("microwave")
	if !ok {
		t.Fatal("BaseRegistry.Get() ok = false, want true")
	}
	if got != entry {
		t.Errorf("BaseRegistry.Get() = %v, want %v", got, entry)
	}

	if _, ok := registry.Get("missing"); ok {
		t.Error("BaseRegistry.Get() found item that was never registered")
	}
}

func TestBaseRegistry_Names(t *testing.T) {
	registry := NewBaseRegistry[deviceEntry]()

	for _, name := range []string{"pump", "microwave", "arm"} {
		if err := registry.Register(name, deviceEntry{Name: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	names := registry.Names()
	want := []string{"arm", "microwave", "pump"}
	if len(names) != len(want) {
		t.Fatalf("BaseRegistry.Names() length = %v, want %v", len(names), len(want))
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("BaseRegistry.Names()[%d] = %v, want %v", i, names[i], name)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	registry := NewBaseRegistry[deviceEntry]()

	if err := registry.Register("microwave", deviceEntry{Name: "microwave"}); err != nil {
		t.Fatalf("Failed to register entry: %v", err)
	}

	if err := registry.Remove("microwave"); err != nil {
		t.Errorf("BaseRegistry.Remove() error = %v, want nil", err)
	}
	if _, ok := registry.Get("microwave"); ok {
		t.Error("BaseRegistry.Remove() item still exists after removal")
	}
	if err := registry.Remove("microwave"); err == nil {
		t.Error("BaseRegistry.Remove() second removal should fail")
	}
}

func TestBaseRegistry_Clear(t *testing.T) {
	registry := NewBaseRegistry[deviceEntry]()

	for _, name := range []string{"pump", "microwave"} {
		if err := registry.Register(name, deviceEntry{Name: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	if count := registry.Count(); count != 2 {
		t.Errorf("BaseRegistry.Count() before clear = %v, want 2", count)
	}

	registry.Clear()

	if count := registry.Count(); count != 0 {
		t.Errorf("BaseRegistry.Count() after clear = %v, want 0", count)
	}
	if items := registry.List(); len(items) != 0 {
		t.Errorf("BaseRegistry.List() after clear length = %v, want 0", len(items))
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	registry := NewBaseRegistry[deviceEntry]()

	done := make(chan bool, 2)

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			name := fmt.Sprintf("device-%d", i)
			_ = registry.Register(name, deviceEntry{Name: name})
		}
	}()

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			registry.Get(fmt.Sprintf("device-%d", i))
			registry.Count()
			registry.List()
		}
	}()

	<-done
	<-done

	if count := registry.Count(); count != 100 {
		t.Errorf("BaseRegistry.Count() after concurrent access = %v, want 100", count)
	}
}
