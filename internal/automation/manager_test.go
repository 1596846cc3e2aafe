//go:build !no_automation

package automation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "scripts"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("list count = %d, want 0", len(scripts))
	}
}

func TestManagerSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		Meta:    ScriptMeta{Name: "Night Light", Description: "dim at night", Enabled: true},
		LuaCode: `matter.log("hello")`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "night_light" {
		t.Errorf("id = %q, want night_light", saved.ID)
	}

	got, err := m.Get(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta != saved.Meta {
		t.Errorf("meta = %+v, want %+v", got.Meta, saved.Meta)
	}
	if strings.TrimSpace(got.LuaCode) != `matter.log("hello")` {
		t.Errorf("lua_code = %q", got.LuaCode)
	}
}

func TestManagerSaveExistingID(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{ID: "mine", Meta: ScriptMeta{Name: "Mine"}, LuaCode: `matter.log("v1")`})
	if err != nil {
		t.Fatal(err)
	}
	saved.LuaCode = `matter.log("v2")`
	if _, err := m.Save(saved); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get("mine")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.LuaCode, `"v2"`) {
		t.Errorf("lua_code after update = %q", got.LuaCode)
	}
	if got.Meta.Enabled {
		t.Error("enabled = true, want false")
	}
}

func TestManagerListSortedAndSkipsOtherFiles(t *testing.T) {
	m := newTestManager(t)
	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		if _, err := m.Save(&Script{Meta: ScriptMeta{Name: name}}); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(m.Dir(), "sub.lua"), 0o755)

	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range scripts {
		ids = append(ids, s.ID)
	}
	if strings.Join(ids, ",") != "alpha,beta,gamma" {
		t.Errorf("ids = %v", ids)
	}
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)
	saved, err := m.Save(&Script{Meta: ScriptMeta{Name: "bye"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(saved.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("get after delete err = %v, want ErrScriptNotFound", err)
	}
	if err := m.Delete(saved.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("second delete err = %v, want ErrScriptNotFound", err)
	}
}

func TestManagerRejectsInvalidIDs(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"..", "../etc/passwd", `a\b`, "x/y"} {
		if _, err := m.Get(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Get(%q) err = %v, want ErrInvalidID", id, err)
		}
		if err := m.Delete(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidID", id, err)
		}
		if _, err := m.Save(&Script{ID: id}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Save(%q) err = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestManagerUniqueID(t *testing.T) {
	m := newTestManager(t)
	s1, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}})
	if err != nil {
		t.Fatal(err)
	}
	if s1.ID != "dup" || s2.ID != "dup_1" {
		t.Errorf("ids = %q, %q, want dup, dup_1", s1.ID, s2.ID)
	}
	s3, _ := m.Save(&Script{Meta: ScriptMeta{Name: "!!!"}})
	if s3.ID != "script" {
		t.Errorf("id for unsluggable name = %q, want script", s3.ID)
	}
}

func TestParseScriptFile(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantName string
		enabled  bool
		code     string
	}{
		{
			"with header",
			"-- {\"name\":\"Humid\",\"enabled\":false}\n\nmatter.log(\"x\")\n",
			"Humid", false, "matter.log(\"x\")\n",
		},
		{
			"plain script",
			"-- turns the light on\nmatter.write(4, 6, 0, true)\n",
			"plain", true, "-- turns the light on\nmatter.write(4, 6, 0, true)\n",
		},
		{
			"broken header",
			"-- {not json\nmatter.log(1)\n",
			"broken", true, "matter.log(1)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			id := strings.Fields(tt.name)[0]
			if err := os.WriteFile(filepath.Join(m.Dir(), id+".lua"), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			s, err := m.Get(id)
			if err != nil {
				t.Fatal(err)
			}
			if s.Meta.Name != tt.wantName {
				t.Errorf("name = %q, want %q", s.Meta.Name, tt.wantName)
			}
			if s.Meta.Enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", s.Meta.Enabled, tt.enabled)
			}
			if s.LuaCode != tt.code {
				t.Errorf("lua_code = %q, want %q", s.LuaCode, tt.code)
			}
		})
	}
}

func TestSerializeScript(t *testing.T) {
	content := serializeScript(&Script{
		Meta:    ScriptMeta{Name: "Test", Enabled: true},
		LuaCode: `matter.log("hi")`,
	})
	want := "-- {\"name\":\"Test\",\"enabled\":true}\n\nmatter.log(\"hi\")\n"
	if content != want {
		t.Errorf("content = %q, want %q", content, want)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Bathroom Light", "bathroom_light"},
		{"hello world!", "hello_world"},
		{"", ""},
		{"  spaces  ", "spaces"},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		if got := slugify(tt.input); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
