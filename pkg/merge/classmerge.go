package merge

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/classfile"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

// Access bits that must agree for a member present on both sides.
const (
	fieldAccessMask  = classfile.AccPublic | classfile.AccPrivate | classfile.AccProtected | classfile.AccStatic
	methodAccessMask = fieldAccessMask | classfile.AccAbstract | classfile.AccNative
)

// ClassMergeResult is the outcome of merging two variants of one class.
type ClassMergeResult struct {
	Data []byte

	ClientOnly []MemberRef // kept and tagged CLIENT
	ServerOnly []MemberRef // imported from the server and tagged SERVER
	Shared     []MemberRef // kept from the client, untagged
	// BodyDivergent lists shared methods whose instruction streams differ.
	// The client body is kept.
	BodyDivergent []MemberRef
	// Verbatim lists attribute names copied from the server without
	// constant-pool remapping.
	Verbatim []string
}

// MergeClasses merges the client and server variants of the class at path.
// The client class is the base: its constant pool, member order and shared
// member bodies are kept. Server-only members are imported into it. Every
// one-sided member carries @SideOnly naming the side it came from; a
// one-sided member already tagged for the other side is an
// IncompatibleMemberError.
func MergeClasses(path string, client, server []byte) (*ClassMergeResult, error) {
	return mergeClasses(path, client, server, "client", "server")
}

func mergeClasses(path string, client, server []byte, clientSource, serverSource string) (*ClassMergeResult, error) {
	out, err := classfile.Parse(client)
	if err != nil {
		return nil, &archive.CorruptArchiveError{Source: clientSource, Path: path, Err: err}
	}
	srv, err := classfile.Parse(server)
	if err != nil {
		return nil, &archive.CorruptArchiveError{Source: serverSource, Path: path, Err: err}
	}

	name, err := checkClassHeaders(out, srv)
	if err != nil {
		return nil, classError(path, serverSource, err)
	}
	im, err := classfile.NewImporter(out, srv)
	if err != nil {
		return nil, classError(path, serverSource, err)
	}

	res := &ClassMergeResult{}
	fields, err := mergeMembers(name, out, srv, im, FieldMember, res)
	if err != nil {
		return nil, classError(path, serverSource, err)
	}
	methods, err := mergeMembers(name, out, srv, im, MethodMember, res)
	if err != nil {
		return nil, classError(path, serverSource, err)
	}
	out.Fields = fields
	out.Methods = methods

	if err := unionInnerClasses(out, srv, im); err != nil {
		return nil, classError(path, serverSource, err)
	}
	if err := im.Finish(); err != nil {
		return nil, classError(path, serverSource, err)
	}
	if len(im.Unknown) > 0 {
		res.Verbatim = lo.Uniq(im.Unknown)
	}
	res.Data = out.Bytes()
	return res, nil
}

// classError reports malformed class data as a corrupt input and passes
// everything else through with the entry path attached.
func classError(path, source string, err error) error {
	if errors.Is(err, classfile.ErrMalformed) {
		return &archive.CorruptArchiveError{Source: source, Path: path, Err: err}
	}
	if errors.Is(err, ErrIncompatible) {
		return err
	}
	return fmt.Errorf("merge class %s: %w", path, err)
}

// checkClassHeaders requires the header items of both variants to agree and
// returns the class name.
func checkClassHeaders(client, server *classfile.ClassFile) (string, error) {
	name, err := client.Name()
	if err != nil {
		return "", err
	}
	serverName, err := server.Name()
	if err != nil {
		return "", err
	}
	mismatch := func(field, c, s string) error {
		return &IncompatibleClassError{Class: name, Field: field, Client: c, Server: s}
	}
	if name != serverName {
		return "", mismatch("name", name, serverName)
	}

	cs, err := client.SuperName()
	if err != nil {
		return "", err
	}
	ss, err := server.SuperName()
	if err != nil {
		return "", err
	}
	if cs != ss {
		return "", mismatch("super", cs, ss)
	}

	ci, err := client.InterfaceNames()
	if err != nil {
		return "", err
	}
	si, err := server.InterfaceNames()
	if err != nil {
		return "", err
	}
	slices.Sort(ci)
	slices.Sort(si)
	if !slices.Equal(ci, si) {
		return "", mismatch("interfaces", strings.Join(ci, ","), strings.Join(si, ","))
	}

	if client.AccessFlags != server.AccessFlags {
		return "", mismatch("access", fmt.Sprintf("0x%04x", client.AccessFlags), fmt.Sprintf("0x%04x", server.AccessFlags))
	}
	if client.MajorVersion != server.MajorVersion {
		return "", mismatch("version", fmt.Sprint(client.MajorVersion), fmt.Sprint(server.MajorVersion))
	}
	return name, nil
}

func mergeMembers(class string, out, srv *classfile.ClassFile, im *classfile.Importer, kind MemberKind, res *ClassMergeResult) ([]*classfile.Member, error) {
	clientMembers, serverMembers := out.Fields, srv.Fields
	mask := fieldAccessMask
	if kind == MethodMember {
		clientMembers, serverMembers = out.Methods, srv.Methods
		mask = methodAccessMask
	}
	cl, err := indexMembers(out, kind, clientMembers)
	if err != nil {
		return nil, err
	}
	sl, err := indexMembers(srv, kind, serverMembers)
	if err != nil {
		return nil, err
	}
	if kind == FieldMember {
		if err := checkFieldTypes(class, cl, sl); err != nil {
			return nil, err
		}
	}

	matches := matchMembers(cl, sl)
	merged := make([]*classfile.Member, 0, len(matches))
	for _, m := range matches {
		switch m.Origin() {
		case Identical:
			if (m.Client.AccessFlags^m.Server.AccessFlags)&mask != 0 {
				return nil, &IncompatibleMemberError{
					Class:      class,
					Member:     m.Ref.Name,
					Descriptor: m.Ref.Descriptor,
					Reason:     fmt.Sprintf("access flags differ (client 0x%04x, server 0x%04x)", m.Client.AccessFlags, m.Server.AccessFlags),
				}
			}
			if kind == MethodMember {
				differ, err := bodiesDiffer(out, m.Client, srv, m.Server)
				if err != nil {
					return nil, err
				}
				if differ {
					res.BodyDivergent = append(res.BodyDivergent, m.Ref)
				}
			}
			merged = append(merged, m.Client)
			res.Shared = append(res.Shared, m.Ref)

		case ClientOnly:
			if err := markSide(class, m.Ref, out, m.Client, sideonly.Client); err != nil {
				return nil, err
			}
			merged = append(merged, m.Client)
			res.ClientOnly = append(res.ClientOnly, m.Ref)

		case ServerOnly:
			imported, err := im.Member(m.Server)
			if err != nil {
				return nil, fmt.Errorf("import %s %s: %w", kind, m.Ref, err)
			}
			if err := markSide(class, m.Ref, out, imported, sideonly.Server); err != nil {
				return nil, err
			}
			merged = append(merged, imported)
			res.ServerOnly = append(res.ServerOnly, m.Ref)
		}
	}
	return merged, nil
}

// checkFieldTypes rejects a field name that has a type on each side that
// the other side lacks.
func checkFieldTypes(class string, client, server *memberList) error {
	byName := func(l *memberList) map[string][]string {
		out := map[string][]string{}
		for _, ref := range l.refs {
			out[ref.Name] = append(out[ref.Name], ref.Descriptor)
		}
		return out
	}
	serverTypes := byName(server)
	for _, ref := range client.refs {
		st, ok := serverTypes[ref.Name]
		if !ok {
			continue
		}
		if _, shared := server.members[ref]; shared {
			continue
		}
		serverOnly := lo.Filter(st, func(d string, _ int) bool {
			_, inClient := client.members[MemberRef{Kind: FieldMember, Name: ref.Name, Descriptor: d}]
			return !inClient
		})
		if len(serverOnly) > 0 {
			return &IncompatibleMemberError{
				Class:      class,
				Member:     ref.Name,
				Descriptor: ref.Descriptor,
				Reason:     fmt.Sprintf("field type differs (server %s)", strings.Join(serverOnly, ", ")),
			}
		}
	}
	return nil
}

// markSide tags m with @SideOnly(side). A member already tagged for the
// other side is rejected.
func markSide(class string, ref MemberRef, cf *classfile.ClassFile, m *classfile.Member, side sideonly.Side) error {
	tagged, ok, err := cf.EnumAnnotationValue(m.Attributes, sideonly.AnnotationDescriptor)
	if err != nil {
		return err
	}
	if ok && tagged != side.String() {
		return &IncompatibleMemberError{
			Class:      class,
			Member:     ref.Name,
			Descriptor: ref.Descriptor,
			Reason:     fmt.Sprintf("present only on the %s side but tagged @SideOnly(%s)", strings.ToLower(side.String()), tagged),
		}
	}
	attrs, _, err := cf.AddEnumAnnotation(m.Attributes, sideonly.AnnotationDescriptor, sideonly.SideDescriptor, side.String())
	if err != nil {
		return err
	}
	m.Attributes = attrs
	return nil
}

// bodiesDiffer compares the opcode streams of two method bodies. Operands
// are ignored since they index different constant pools.
func bodiesDiffer(a *classfile.ClassFile, am *classfile.Member, b *classfile.ClassFile, bm *classfile.Member) (bool, error) {
	ao, err := opcodes(a, am)
	if err != nil {
		return false, err
	}
	bo, err := opcodes(b, bm)
	if err != nil {
		return false, err
	}
	return !slices.Equal(ao, bo), nil
}

func opcodes(cf *classfile.ClassFile, m *classfile.Member) ([]byte, error) {
	i := cf.FindAttribute(m.Attributes, classfile.AttrCode)
	if i < 0 {
		return nil, nil
	}
	code, err := classfile.ParseCode(m.Attributes[i].Info)
	if err != nil {
		return nil, err
	}
	insns, err := classfile.Instructions(code.Code)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(insns))
	for _, in := range insns {
		op := in.Opcode
		if op == classfile.OpLdcW {
			op = classfile.OpLdc
		}
		out = append(out, op)
	}
	return out, nil
}

// unionInnerClasses appends the server's InnerClasses entries whose inner
// class the client does not already list.
func unionInnerClasses(out, srv *classfile.ClassFile, im *classfile.Importer) error {
	si := srv.FindAttribute(srv.Attributes, classfile.AttrInnerClasses)
	if si < 0 {
		return nil
	}
	serverEntries, err := classfile.ParseInnerClasses(srv.Attributes[si].Info)
	if err != nil {
		return err
	}

	var entries []classfile.InnerClass
	if ci := out.FindAttribute(out.Attributes, classfile.AttrInnerClasses); ci >= 0 {
		if entries, err = classfile.ParseInnerClasses(out.Attributes[ci].Info); err != nil {
			return err
		}
	}
	known := make(map[string]bool, len(entries))
	for _, ic := range entries {
		n, err := out.Pool.ClassName(ic.Inner)
		if err != nil {
			return err
		}
		known[n] = true
	}

	added := false
	for _, ic := range serverEntries {
		n, err := srv.Pool.ClassName(ic.Inner)
		if err != nil {
			return err
		}
		if known[n] {
			continue
		}
		imported, err := im.InnerClass(ic)
		if err != nil {
			return err
		}
		entries = append(entries, imported)
		known[n] = true
		added = true
	}
	if !added {
		return nil
	}
	attrs, err := out.SetAttribute(out.Attributes, classfile.AttrInnerClasses, classfile.EncodeInnerClasses(entries))
	if err != nil {
		return err
	}
	out.Attributes = attrs
	return nil
}

// AnnotateClass tags a whole class with @SideOnly(side). The returned bool
// is false, and data is returned unchanged, when the class already carries
// the annotation.
func AnnotateClass(data []byte, side sideonly.Side) ([]byte, bool, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, false, err
	}
	attrs, changed, err := cf.AddEnumAnnotation(cf.Attributes, sideonly.AnnotationDescriptor, sideonly.SideDescriptor, side.String())
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return data, false, nil
	}
	cf.Attributes = attrs
	return cf.Bytes(), true, nil
}
