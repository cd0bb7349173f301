package merge

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompatible matches IncompatibleClassError and IncompatibleMemberError.
	ErrIncompatible = errors.New("incompatible class variants")
	// ErrResourceConflict matches ResourceConflictError.
	ErrResourceConflict = errors.New("divergent resource")
)

// IncompatibleClassError reports class-level metadata that differs between
// the client and server variants of a class.
type IncompatibleClassError struct {
	Class  string
	Field  string // which header item disagrees: name, super, interfaces, access, version
	Client string
	Server string
}

func (e *IncompatibleClassError) Error() string {
	return fmt.Sprintf("class %s: %s differs (client %s, server %s)", e.Class, e.Field, e.Client, e.Server)
}

func (e *IncompatibleClassError) Is(target error) bool { return target == ErrIncompatible }

// IncompatibleMemberError reports a field or method present on both sides
// whose shapes cannot be reconciled.
type IncompatibleMemberError struct {
	Class      string
	Member     string
	Descriptor string
	Reason     string
}

func (e *IncompatibleMemberError) Error() string {
	return fmt.Sprintf("class %s: member %s%s: %s", e.Class, e.Member, e.Descriptor, e.Reason)
}

func (e *IncompatibleMemberError) Is(target error) bool { return target == ErrIncompatible }

// ResourceConflictError reports a divergent non-class entry under the
// "error" resource policy.
type ResourceConflictError struct {
	Path      string
	ClientCRC uint32
	ServerCRC uint32
}

func (e *ResourceConflictError) Error() string {
	return fmt.Sprintf("resource %s differs between inputs (client crc %08x, server crc %08x)", e.Path, e.ClientCRC, e.ServerCRC)
}

func (e *ResourceConflictError) Is(target error) bool { return target == ErrResourceConflict }
