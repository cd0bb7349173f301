// Package sideonly bundles the side-marker classes that the merger uses to
// tag members present in only one of the client and server archives.
package sideonly

import (
	"embed"
	"fmt"
	"path"

	"github.com/odvcencio/jarmerge/pkg/archive"
)

// Version identifies the bundled marker definitions.
const Version = "1.0.0"

const (
	// SideClass is the internal name of the Side enum.
	SideClass = "net/minecraftforge/fml/relauncher/Side"
	// AnnotationClass is the internal name of the SideOnly annotation.
	AnnotationClass = "net/minecraftforge/fml/relauncher/SideOnly"

	SideDescriptor       = "L" + SideClass + ";"
	AnnotationDescriptor = "L" + AnnotationClass + ";"
)

//go:embed classes/Side.class classes/SideOnly.class
var bundled embed.FS

// Side is one of the two merged variants.
type Side int

const (
	Client Side = iota
	Server
)

// String returns the enum constant name used in the annotation.
func (s Side) String() string {
	switch s {
	case Client:
		return "CLIENT"
	case Server:
		return "SERVER"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// ParseSide maps an enum constant name back to a Side.
func ParseSide(name string) (Side, bool) {
	switch name {
	case "CLIENT":
		return Client, true
	case "SERVER":
		return Server, true
	}
	return 0, false
}

var classNames = []string{SideClass, AnnotationClass}

// Paths returns the archive paths of the bundled classes.
func Paths() []string {
	out := make([]string, len(classNames))
	for i, n := range classNames {
		out[i] = n + ".class"
	}
	return out
}

// IsMarker reports whether p is the path of a bundled class.
func IsMarker(p string) bool {
	for _, n := range classNames {
		if p == n+".class" {
			return true
		}
	}
	return false
}

// Entries returns fresh copies of the bundled classes as archive entries.
func Entries() []archive.Entry {
	out := make([]archive.Entry, 0, len(classNames))
	for _, n := range classNames {
		data, err := bundled.ReadFile("classes/" + path.Base(n) + ".class")
		if err != nil {
			// The files are compiled in; a miss is a build defect.
			panic(fmt.Sprintf("sideonly: bundled class %s missing: %v", n, err))
		}
		out = append(out, archive.NewEntry(n+".class", data))
	}
	return out
}
