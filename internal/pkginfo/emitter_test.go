package pkginfo

import (
	"bytes"
	"testing"

	"github.com/frederic-klein/stackdist/internal/dist"
)

const catkinPKGINFO = `Metadata-Version: 1.1
Name: catkin
Version: 1.2.3
Summary: Catkin cmake library
Home-page: http://www.ros.org
Author: Troy Straszheim, Morten Kjaergaard
Author-email: straszheim@willowgarage.com
License: BSD
Download-URL: http://github.com/straszheim/catkin/
Description: Build system stuff
        
Keywords: ROS
Platform: UNKNOWN
Classifier: Programming Language :: Python
Classifier: License :: OSI Approved :: BSD License
`

func TestEmitter_Emit(t *testing.T) {
	tests := []struct {
		name string
		meta *dist.Metadata
		want string
	}{
		{
			name: "catkin",
			meta: dist.Catkin("1.2.3"),
			want: catkinPKGINFO,
		},
		{
			name: "empty metadata",
			meta: &dist.Metadata{},
			want: `Metadata-Version: 1.1
Name: UNKNOWN
Version: 0.0.0
Summary: UNKNOWN
Home-page: UNKNOWN
Author: UNKNOWN
Author-email: UNKNOWN
License: UNKNOWN
Description: UNKNOWN
Platform: UNKNOWN
`,
		},
		{
			name: "multi-line description",
			meta: &dist.Metadata{
				Name:            "tool",
				Version:         "2.0",
				LongDescription: "first line\n\nthird line\n",
				Keywords:        []string{"ROS", "cmake"},
			},
			want: "Metadata-Version: 1.1\n" +
				"Name: tool\n" +
				"Version: 2.0\n" +
				"Summary: UNKNOWN\n" +
				"Home-page: UNKNOWN\n" +
				"Author: UNKNOWN\n" +
				"Author-email: UNKNOWN\n" +
				"License: UNKNOWN\n" +
				"Description: first line\n" +
				"        \n" +
				"        third line\n" +
				"        \n" +
				"Keywords: ROS,cmake\n" +
				"Platform: UNKNOWN\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			emitter := NewEmitter(&buf)
			if err := emitter.Emit(tt.meta); err != nil {
				t.Fatalf("Emit() error = %v", err)
			}
			got := buf.String()
			if got != tt.want {
				t.Errorf("Emit() =\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestEmitter_SameFieldsForAnyVersion(t *testing.T) {
	a, err := Bytes(dist.Catkin("1.0"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Bytes(dist.Catkin("2.0"))
	if err != nil {
		t.Fatal(err)
	}

	got := bytes.Replace(a, []byte("Version: 1.0\n"), []byte("Version: 2.0\n"), 1)
	if !bytes.Equal(got, b) {
		t.Errorf("PKG-INFO differs beyond the version:\n%s\nvs\n%s", a, b)
	}
}

func TestEscapeDescription(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "UNKNOWN"},
		{"one", "one"},
		{"one\n", "one\n        "},
		{"one\ntwo", "one\n        two"},
		{"one\n\ntwo\n", "one\n        \n        two\n        "},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := escapeDescription(tt.input)
			if got != tt.want {
				t.Errorf("escapeDescription(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
