package config

import "testing"

// helper builds a lookup function from a map.
func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

type overlay struct {
	Greedy             bool
	BoundedCapacity    int
	MaxNumberOfGroups  int64
	MaxMessagesPerTask int
}

type configWithFunc struct {
	BoundedCapacity int
	ErrorHandler    func(error)
	MaxNumberOfGroups int64
}

func TestLoad_FlatOverlay(t *testing.T) {
	l := Loader{
		lookup: envMap(map[string]string{
			"JOINGROUP_ORDERS_GREEDY":                  "false",
			"JOINGROUP_ORDERS_BOUNDED_CAPACITY":         "256",
			"JOINGROUP_ORDERS_MAX_NUMBER_OF_GROUPS":     "5",
			"JOINGROUP_ORDERS_MAX_MESSAGES_PER_TASK":    "30",
		}),
	}

	var cfg overlay
	if err := l.Load("orders", &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Greedy != false {
		t.Errorf("Greedy = %v, want false", cfg.Greedy)
	}
	if cfg.BoundedCapacity != 256 {
		t.Errorf("BoundedCapacity = %d, want 256", cfg.BoundedCapacity)
	}
	if cfg.MaxNumberOfGroups != 5 {
		t.Errorf("MaxNumberOfGroups = %d, want 5", cfg.MaxNumberOfGroups)
	}
	if cfg.MaxMessagesPerTask != 30 {
		t.Errorf("MaxMessagesPerTask = %d, want 30", cfg.MaxMessagesPerTask)
	}
}

func TestLoad_CustomPrefix(t *testing.T) {
	l := Loader{
		Prefix: "MYAPP",
		lookup: envMap(map[string]string{
			"MYAPP_STAGE_BOUNDED_CAPACITY": "12",
		}),
	}

	var cfg overlay
	if err := l.Load("stage", &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.BoundedCapacity != 12 {
		t.Errorf("BoundedCapacity = %d, want 12", cfg.BoundedCapacity)
	}
}

func TestLoad_StageNormalization(t *testing.T) {
	tests := []struct {
		stage string
		key   string
	}{
		{"process-order", "JOINGROUP_PROCESS_ORDER_BOUNDED_CAPACITY"},
		{"My Stage", "JOINGROUP_MY_STAGE_BOUNDED_CAPACITY"},
		{"UPPER", "JOINGROUP_UPPER_BOUNDED_CAPACITY"},
		{"with_underscore", "JOINGROUP_WITH_UNDERSCORE_BOUNDED_CAPACITY"},
		{"mixed-Case_Name", "JOINGROUP_MIXED_CASE_NAME_BOUNDED_CAPACITY"},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			l := Loader{
				lookup: envMap(map[string]string{
					tt.key: "7",
				}),
			}

			var cfg overlay
			if err := l.Load(tt.stage, &cfg); err != nil {
				t.Fatal(err)
			}
			if cfg.BoundedCapacity != 7 {
				t.Errorf("BoundedCapacity = %d, want 7 (key: %s)", cfg.BoundedCapacity, tt.key)
			}
		})
	}
}

func TestLoad_MissingEnvVarsPreserveDefaults(t *testing.T) {
	l := Loader{
		lookup: envMap(map[string]string{
			// Only set BoundedCapacity, leave MaxNumberOfGroups unset.
			"JOINGROUP_STAGE_BOUNDED_CAPACITY": "5",
		}),
	}

	cfg := overlay{MaxNumberOfGroups: 42}
	if err := l.Load("stage", &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.BoundedCapacity != 5 {
		t.Errorf("BoundedCapacity = %d, want 5", cfg.BoundedCapacity)
	}
	if cfg.MaxNumberOfGroups != 42 {
		t.Errorf("MaxNumberOfGroups = %d, want 42 (preserved default)", cfg.MaxNumberOfGroups)
	}
}

func TestLoad_SkipsFuncFields(t *testing.T) {
	l := Loader{
		lookup: envMap(map[string]string{
			"JOINGROUP_STAGE_BOUNDED_CAPACITY":     "3",
			"JOINGROUP_STAGE_MAX_NUMBER_OF_GROUPS": "10",
		}),
	}

	var cfg configWithFunc
	if err := l.Load("stage", &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.BoundedCapacity != 3 {
		t.Errorf("BoundedCapacity = %d, want 3", cfg.BoundedCapacity)
	}
	if cfg.MaxNumberOfGroups != 10 {
		t.Errorf("MaxNumberOfGroups = %d, want 10", cfg.MaxNumberOfGroups)
	}
	if cfg.ErrorHandler != nil {
		t.Error("ErrorHandler should remain nil")
	}
}

func TestLoad_InvalidInt(t *testing.T) {
	l := Loader{
		lookup: envMap(map[string]string{
			"JOINGROUP_STAGE_BOUNDED_CAPACITY": "not_a_number",
		}),
	}

	var cfg overlay
	if err := l.Load("stage", &cfg); err == nil {
		t.Fatal("expected error for invalid int")
	}
}

func TestLoad_InvalidBool(t *testing.T) {
	l := Loader{
		lookup: envMap(map[string]string{
			"JOINGROUP_STAGE_GREEDY": "not_bool",
		}),
	}

	var cfg overlay
	if err := l.Load("stage", &cfg); err == nil {
		t.Fatal("expected error for invalid bool")
	}
}

func TestLoad_NotAPointer(t *testing.T) {
	l := Loader{lookup: envMap(nil)}
	if err := l.Load("stage", overlay{}); err == nil {
		t.Fatal("expected error for non-pointer dst")
	}
}

func TestLoad_NotAStruct(t *testing.T) {
	l := Loader{lookup: envMap(nil)}
	n := 42
	if err := l.Load("stage", &n); err == nil {
		t.Fatal("expected error for non-struct dst")
	}
}

func TestKeys_FlatOverlay(t *testing.T) {
	keys := Loader{}.Keys("transform", overlay{})
	want := []string{
		"JOINGROUP_TRANSFORM_GREEDY",
		"JOINGROUP_TRANSFORM_BOUNDED_CAPACITY",
		"JOINGROUP_TRANSFORM_MAX_NUMBER_OF_GROUPS",
		"JOINGROUP_TRANSFORM_MAX_MESSAGES_PER_TASK",
	}
	assertKeys(t, keys, want)
}

func TestKeys_SkipsFuncFields(t *testing.T) {
	keys := Loader{}.Keys("stage", configWithFunc{})
	want := []string{
		"JOINGROUP_STAGE_BOUNDED_CAPACITY",
		"JOINGROUP_STAGE_MAX_NUMBER_OF_GROUPS",
	}
	assertKeys(t, keys, want)
}

func TestKeys_CustomPrefix(t *testing.T) {
	l := Loader{Prefix: "APP"}
	keys := l.Keys("worker", overlay{})
	want := []string{
		"APP_WORKER_GREEDY",
		"APP_WORKER_BOUNDED_CAPACITY",
		"APP_WORKER_MAX_NUMBER_OF_GROUPS",
		"APP_WORKER_MAX_MESSAGES_PER_TASK",
	}
	assertKeys(t, keys, want)
}

func TestKeys_Pointer(t *testing.T) {
	keys := Loader{}.Keys("stage", &overlay{})
	if len(keys) != 4 {
		t.Errorf("Keys with pointer: got %d keys, want 4", len(keys))
	}
}

func TestKeys_NonStruct(t *testing.T) {
	keys := Loader{}.Keys("stage", 42)
	if keys != nil {
		t.Errorf("Keys for non-struct: got %v, want nil", keys)
	}
}

func TestToUpperSnake(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"BoundedCapacity", "BOUNDED_CAPACITY"},
		{"MaxNumberOfGroups", "MAX_NUMBER_OF_GROUPS"},
		{"Greedy", "GREEDY"},
		{"URLPath", "URL_PATH"},
		{"HTTPClient", "HTTP_CLIENT"},
		{"ID", "ID"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := toUpperSnake(tt.in)
			if got != tt.want {
				t.Errorf("toUpperSnake(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeStage(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"transform", "TRANSFORM"},
		{"process-order", "PROCESS_ORDER"},
		{"My Stage", "MY_STAGE"},
		{"UPPER", "UPPER"},
		{"with_underscore", "WITH_UNDERSCORE"},
		{"special!@#chars", "SPECIALCHARS"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := normalizeStage(tt.in)
			if got != tt.want {
				t.Errorf("normalizeStage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func assertKeys(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got %d keys, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
