package lockfile

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/package-lock.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"v1", `{"lockfileVersion": 1}`, 1, false},
		{"v2", `{"name": "x", "lockfileVersion": 2, "packages": {}}`, 2, false},
		{"v3", `{"lockfileVersion": 3}`, 3, false},
		{"missing", `{"name": "x"}`, 0, true},
		{"fractional", `{"lockfileVersion": 1.5}`, 0, true},
		{"malformed", `{"lockfileVersion": `, 0, true},
		{"not an object", `[1]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeekVersion([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("PeekVersion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeParse) {
				t.Errorf("PeekVersion() error code = %s, want PARSE_ERROR", errors.GetCode(err))
			}
			if got != tt.want {
				t.Errorf("PeekVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	lf, err := Parse(readFixture(t))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if lf.Version != 1 {
		t.Errorf("Version = %d, want 1", lf.Version)
	}
	if len(lf.Dependencies) != 4 {
		t.Fatalf("len(Dependencies) = %d, want 4", len(lf.Dependencies))
	}

	styles := lf.Dependencies["ansi-styles"]
	if styles.Version != "3.2.1" || !styles.HasResolved() {
		t.Errorf("ansi-styles = %+v", styles)
	}
	convert := styles.Dependencies["color-convert"]
	if convert == nil || convert.Version != "1.9.3" {
		t.Fatalf("nested color-convert = %+v", convert)
	}

	local := lf.Dependencies["local-utils"]
	if local.HasResolved() {
		t.Error("local-utils should have no resolved URL")
	}
	if local.Dependencies["left-pad"] == nil {
		t.Error("local-utils should keep its nested dependencies")
	}

	if got := Count(lf.Dependencies); got != 6 {
		t.Errorf("Count() = %d, want 6", got)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`{"lockfileVersion": 1,}`,
		`{"dependencies": {}}`,
		`{"lockfileVersion": "one"}`,
		`{"lockfileVersion": 1, "dependencies": []}`,
		`{"lockfileVersion": 1, "dependencies": {"a": {"version": 3}}}`,
		`{"lockfileVersion": 1} trailing`,
	}

	for _, in := range inputs {
		if _, err := Parse([]byte(in)); !errors.Is(err, errors.ErrCodeParse) {
			t.Errorf("Parse(%q) error = %v, want PARSE_ERROR", in, err)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data := readFixture(t)
	lf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	out, err := lf.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("round trip changed the file:\n--- got ---\n%s\n--- want ---\n%s", out, data)
	}
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	data := []byte("{\n  \"lockfileVersion\": 1,\n  \"dependencies\": {\n    \"a\": {\n      \"version\": \"1.0.0\",\n      \"resolved\": \"https://r.example.com/a?x=1&y=<2>\"\n    }\n  }\n}\n")
	lf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	out, err := lf.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Marshal() =\n%s\nwant\n%s", out, data)
	}
}

func TestMarshalInsertsIntegrityAfterResolved(t *testing.T) {
	lf, err := Parse(readFixture(t))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	dep := lf.Dependencies["optional-thing"]
	dep.Resolved = "https://mirror.example.com/optional-thing/-/optional-thing-0.1.0.tgz"
	dep.Integrity = "sha1-2jmj7l5rSw0yVb/vlWAYkK/YBwk="

	out, err := lf.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	want := `    "optional-thing": {
      "version": "0.1.0",
      "resolved": "https://mirror.example.com/optional-thing/-/optional-thing-0.1.0.tgz",
      "integrity": "sha1-2jmj7l5rSw0yVb/vlWAYkK/YBwk=",
      "optional": true,`
	if !strings.Contains(string(out), want) {
		t.Errorf("Marshal() output missing\n%s\ngot\n%s", want, out)
	}
}

func TestMarshalAppendsNewMembers(t *testing.T) {
	dep := &Dependency{Version: "1.0.0", Resolved: "https://r.example.com/a.tgz", Integrity: "sha1-x"}
	out, err := dep.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	want := `{"version":"1.0.0","resolved":"https://r.example.com/a.tgz","integrity":"sha1-x"}`
	if string(out) != want {
		t.Errorf("MarshalJSON() = %s, want %s", out, want)
	}
}

func TestMarshalKeepsNullDependencies(t *testing.T) {
	data := []byte(`{"lockfileVersion":1,"dependencies":{"a":{"version":"1.0.0","dependencies":null}}}`)
	lf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	out, err := lf.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("MarshalJSON() = %s, want %s", out, data)
	}
}

func TestMarshalKeepsNullStrings(t *testing.T) {
	data := []byte(`{"lockfileVersion":1,"dependencies":{"local":{"version":"file:x","resolved":null,"integrity":null,"dependencies":{"b":{"version":null}}}}}`)
	lf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if lf.Dependencies["local"].HasResolved() {
		t.Error("null resolved reported as set")
	}
	out, err := lf.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("MarshalJSON() = %s, want %s", out, data)
	}

	// A value set later replaces the null in place.
	dep := lf.Dependencies["local"]
	dep.Resolved = "https://r.example.com/x.tgz"
	dep.Integrity = "sha1-x"
	out, err = dep.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	want := `{"version":"file:x","resolved":"https://r.example.com/x.tgz","integrity":"sha1-x","dependencies":{"b":{"version":null}}}`
	if string(out) != want {
		t.Errorf("MarshalJSON() = %s, want %s", out, want)
	}
}

func TestClone(t *testing.T) {
	lf, err := Parse(readFixture(t))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	clone := lf.Clone()
	clone.Dependencies["ansi-styles"].Dependencies["color-convert"].Resolved = "changed"
	delete(clone.Dependencies, "local-utils")

	if lf.Dependencies["ansi-styles"].Dependencies["color-convert"].Resolved == "changed" {
		t.Error("Clone() shares nested entries with the original")
	}
	if _, ok := lf.Dependencies["local-utils"]; !ok {
		t.Error("Clone() shares the dependencies map with the original")
	}
}

func TestWalk(t *testing.T) {
	lf, err := Parse(readFixture(t))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	var paths []string
	Walk(lf.Dependencies, func(path, _ string, _ *Dependency) {
		paths = append(paths, path)
	})

	want := []string{
		"node_modules/@babel/code-frame",
		"node_modules/ansi-styles",
		"node_modules/ansi-styles/node_modules/color-convert",
		"node_modules/local-utils",
		"node_modules/local-utils/node_modules/left-pad",
		"node_modules/optional-thing",
	}
	if strings.Join(paths, "\n") != strings.Join(want, "\n") {
		t.Errorf("Walk() paths = %v, want %v", paths, want)
	}
}

func TestChildPath(t *testing.T) {
	if got := ChildPath("", "a"); got != "node_modules/a" {
		t.Errorf("ChildPath(\"\", a) = %q", got)
	}
	if got := ChildPath("node_modules/a", "@s/b"); got != "node_modules/a/node_modules/@s/b" {
		t.Errorf("ChildPath(a, @s/b) = %q", got)
	}
}
