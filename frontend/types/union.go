package types

import (
	"slices"
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	xset "github.com/xtgo/set"
)

// Members is implemented by types that are a set of alternatives
type Members interface {
	Type
	Members() []Type
}

var (
	_ Members = (*Union)(nil)
	_ Members = (*DiscriminatedUnion)(nil)
)

// Union is an untagged set of alternatives. Member order is not significant.
type Union struct {
	members []Type
}

// NewUnion builds a union of members, flattening nested unions and
// dropping members that are structurally equal to an earlier one
func NewUnion(members ...Type) *Union {
	seen := set.NewHashSet[Type, uint64](len(members))
	u := &Union{}
	var add func(t Type)
	add = func(t Type) {
		if t == nil {
			return
		}
		if nested, ok := t.(*Union); ok {
			for _, m := range nested.members {
				add(m)
			}
			return
		}
		if seen.Contains(t) && slices.ContainsFunc(u.members, t.Equals) {
			return
		}
		seen.Insert(t)
		u.members = append(u.members, t)
	}
	for _, m := range members {
		add(m)
	}
	return u
}

func (u *Union) isType()         {}
func (u *Union) Kind() Kind      { return KindUnion }
func (u *Union) Members() []Type { return u.members }

func (u *Union) String() string {
	parts := make([]string, len(u.members))
	for i, m := range u.members {
		parts[i] = typeString(m)
	}
	return strings.Join(parts, " | ")
}

// Equals requires the same cardinality and a perfect match of members by structural equality.
// Members of a union are pairwise distinct, so each member has at most one partner.
func (u *Union) Equals(other Type) bool {
	o, ok := other.(*Union)
	if !ok || o == nil || len(o.members) != len(u.members) {
		return false
	}
	used := make([]bool, len(o.members))
	for _, m := range u.members {
		matched := false
		for j, candidate := range o.members {
			if !used[j] && m.Equals(candidate) {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// IsAssignableFrom accepts anything assignable to one of the members,
// and unions whose every member is accepted
func (u *Union) IsAssignableFrom(other Type) bool {
	return unionAccepts(u, other)
}

func unionAccepts(u Members, other Type) bool {
	if isWildcard(other) || u.Equals(other) {
		return true
	}
	if o, ok := other.(Members); ok {
		for _, m := range o.Members() {
			if !unionAccepts(u, m) {
				return false
			}
		}
		return len(o.Members()) > 0
	}
	for _, m := range u.Members() {
		if m.IsAssignableFrom(other) {
			return true
		}
	}
	return false
}

func (u *Union) Clone() Type {
	return &Union{members: cloneList(u.members)}
}

// Hash is independent of member order
func (u *Union) Hash() uint64 {
	hashes := make([]uint64, len(u.members))
	for i, m := range u.members {
		hashes[i] = m.Hash()
	}
	slices.Sort(hashes)
	return hashOf(KindUnion, hashes...)
}

// Variant is one tagged alternative of a DiscriminatedUnion
type Variant struct {
	Tag     string
	Payload Type
}

// DiscriminatedUnion is a union whose alternatives carry a distinct tag
type DiscriminatedUnion struct {
	Variants []Variant
}

// NewDiscriminatedUnion keeps the first variant of every tag
func NewDiscriminatedUnion(variants ...Variant) *DiscriminatedUnion {
	return &DiscriminatedUnion{Variants: firstPerTag(variants)}
}

func firstPerTag(variants []Variant) []Variant {
	seen := set.New[string](len(variants))
	unique := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if seen.Insert(v.Tag) {
			unique = append(unique, v)
		}
	}
	return unique
}

func (d *DiscriminatedUnion) isType()    {}
func (d *DiscriminatedUnion) Kind() Kind { return KindDiscriminatedUnion }

// Members returns the payload type of every variant
func (d *DiscriminatedUnion) Members() []Type {
	members := make([]Type, len(d.Variants))
	for i, v := range d.Variants {
		members[i] = v.Payload
	}
	return members
}

// Payload returns the payload type of the variant tagged tag
func (d *DiscriminatedUnion) Payload(tag string) (Type, bool) {
	for _, v := range d.Variants {
		if v.Tag == tag {
			return v.Payload, true
		}
	}
	return nil, false
}

// Tags returns the sorted, deduplicated tags of d
func (d *DiscriminatedUnion) Tags() []string {
	tags := make([]string, len(d.Variants))
	for i, v := range d.Variants {
		tags[i] = v.Tag
	}
	sort.Strings(tags)
	return tags[:xset.Uniq(sort.StringSlice(tags))]
}

func (d *DiscriminatedUnion) String() string {
	parts := make([]string, len(d.Variants))
	for i, v := range d.Variants {
		parts[i] = v.Tag + "(" + typeString(v.Payload) + ")"
	}
	return strings.Join(parts, " | ")
}

// Equals requires identical tag sets with equal payload types per tag, in any order.
// A repeated tag counts once, with the payload of its first variant.
func (d *DiscriminatedUnion) Equals(other Type) bool {
	o, ok := other.(*DiscriminatedUnion)
	if !ok || o == nil {
		return false
	}
	if !slices.Equal(d.Tags(), o.Tags()) {
		return false
	}
	for _, v := range firstPerTag(d.Variants) {
		payload, _ := o.Payload(v.Tag)
		if v.Payload == nil || !v.Payload.Equals(payload) {
			return false
		}
	}
	return true
}

func (d *DiscriminatedUnion) IsAssignableFrom(other Type) bool {
	return unionAccepts(d, other)
}

func (d *DiscriminatedUnion) Clone() Type {
	variants := make([]Variant, len(d.Variants))
	for i, v := range d.Variants {
		variants[i] = Variant{Tag: v.Tag, Payload: v.Payload}
		if v.Payload != nil {
			variants[i].Payload = v.Payload.Clone()
		}
	}
	return &DiscriminatedUnion{Variants: variants}
}

func (d *DiscriminatedUnion) Hash() uint64 {
	hashes := make([]uint64, 0, len(d.Variants))
	for _, v := range firstPerTag(d.Variants) {
		var payload uint64
		if v.Payload != nil {
			payload = v.Payload.Hash()
		}
		hashes = append(hashes, hashOf(KindDiscriminatedUnion, hashString(v.Tag), payload))
	}
	slices.Sort(hashes)
	return hashOf(KindDiscriminatedUnion, hashes...)
}
