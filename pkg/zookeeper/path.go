package zookeeper

import (
	"fmt"
	"strings"
)

// ValidatePath verifies that a node path is absolute and made of non-empty names.
// The root itself is a valid path.
func ValidatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path does not start at the root")
	}
	if path == "/" {
		return nil
	}

	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("path should end in a node name, not a '/'")
	}

	names := strings.Split(path, "/")
	// Since we have a leading /, then we expect the first name to be empty.
	for _, name := range names[1:] {
		switch name {
		case "":
			return fmt.Errorf("path contains an empty node name")
		case ".", "..":
			return fmt.Errorf("path contains a relative node name %q", name)
		}
		if strings.ContainsRune(name, 0) {
			return fmt.Errorf("path contains a null character")
		}
	}
	return nil
}

// SplitPath returns the parent path and the name of the last node. The parent of a
// top level node is "/".
func SplitPath(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/", path[i+1:]
	}
	return path[:i], path[i+1:]
}
