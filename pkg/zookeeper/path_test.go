package zookeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		errorExpected bool
	}{
		{
			name:          "empty string",
			path:          "",
			errorExpected: true,
		},
		{
			name:          "not starting at root",
			path:          "node/other/one",
			errorExpected: true,
		},
		{
			name:          "not ending with node name",
			path:          "/a/b/",
			errorExpected: true,
		},
		{
			name:          "root",
			path:          "/",
			errorExpected: false,
		},
		{
			name:          "no parents",
			path:          "/x",
			errorExpected: false,
		},
		{
			name:          "multiple parents",
			path:          "/x/y/z",
			errorExpected: false,
		},
		{
			name:          "empty name between path separator",
			path:          "//y/z",
			errorExpected: true,
		},
		{
			name:          "relative name",
			path:          "/x/../y",
			errorExpected: true,
		},
		{
			name:          "null character",
			path:          "/x/a\x00b",
			errorExpected: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidatePath(test.path)
			if test.errorExpected {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		name   string
	}{
		{path: "/a", parent: "/", name: "a"},
		{path: "/a/b", parent: "/a", name: "b"},
		{path: "/a/b/c", parent: "/a/b", name: "c"},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			parent, name := SplitPath(test.path)
			assert.Equal(t, test.parent, parent)
			assert.Equal(t, test.name, name)
		})
	}
}
