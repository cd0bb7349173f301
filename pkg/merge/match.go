package merge

import (
	"fmt"

	"github.com/odvcencio/jarmerge/pkg/classfile"
)

// MemberKind distinguishes fields from methods.
type MemberKind int

const (
	FieldMember MemberKind = iota
	MethodMember
)

func (k MemberKind) String() string {
	switch k {
	case FieldMember:
		return "field"
	case MethodMember:
		return "method"
	}
	return fmt.Sprintf("MemberKind(%d)", int(k))
}

// MemberRef identifies a field or method by name and descriptor.
type MemberRef struct {
	Kind       MemberKind
	Name       string
	Descriptor string
}

func (r MemberRef) String() string {
	if r.Kind == FieldMember {
		return r.Name + ":" + r.Descriptor
	}
	return r.Name + r.Descriptor
}

// MatchedMember pairs the client and server copies of one member. Either
// side is nil when the member exists on the other side only.
type MatchedMember struct {
	Ref    MemberRef
	Client *classfile.Member
	Server *classfile.Member
}

// Origin classifies the pair.
func (m MatchedMember) Origin() Origin {
	switch {
	case m.Server == nil:
		return ClientOnly
	case m.Client == nil:
		return ServerOnly
	}
	return Identical
}

type memberList struct {
	refs    []MemberRef
	members map[MemberRef]*classfile.Member
}

func indexMembers(cf *classfile.ClassFile, kind MemberKind, members []*classfile.Member) (*memberList, error) {
	l := &memberList{members: make(map[MemberRef]*classfile.Member, len(members))}
	for _, m := range members {
		name, desc, err := cf.MemberKey(m)
		if err != nil {
			return nil, err
		}
		ref := MemberRef{Kind: kind, Name: name, Descriptor: desc}
		if _, dup := l.members[ref]; dup {
			return nil, fmt.Errorf("%w: duplicate %s %s", classfile.ErrMalformed, kind, ref)
		}
		l.members[ref] = m
		l.refs = append(l.refs, ref)
	}
	return l, nil
}

// matchMembers merges the client and server member sequences. The result
// follows client order; each server-only member is placed right after the
// nearest preceding member that the client also has, or at the front when
// there is none.
func matchMembers(client, server *memberList) []MatchedMember {
	insertions := collectInsertions(server.refs, client.members)

	keys := make([]MemberRef, 0, len(client.refs)+len(server.refs))
	keys = append(keys, insertions[anchorFront]...)
	for _, ref := range client.refs {
		keys = append(keys, ref)
		keys = append(keys, insertions[anchorAfter(ref)]...)
	}

	out := make([]MatchedMember, 0, len(keys))
	for _, ref := range keys {
		out = append(out, MatchedMember{Ref: ref, Client: client.members[ref], Server: server.members[ref]})
	}
	return out
}

type anchor struct {
	ref   MemberRef
	front bool
}

var anchorFront = anchor{front: true}

func anchorAfter(ref MemberRef) anchor { return anchor{ref: ref} }

// collectInsertions groups refs absent from base by the nearest preceding
// ref that base does contain.
func collectInsertions(refs []MemberRef, base map[MemberRef]*classfile.Member) map[anchor][]MemberRef {
	insertions := map[anchor][]MemberRef{}
	at := anchorFront
	for _, ref := range refs {
		if _, ok := base[ref]; ok {
			at = anchorAfter(ref)
			continue
		}
		insertions[at] = append(insertions[at], ref)
	}
	return insertions
}
