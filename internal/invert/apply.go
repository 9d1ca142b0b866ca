package invert

import (
	"github.com/openblcmm/blcmm/internal/model"
)

// Names of the categories Apply creates.
const (
	InversionSuffix      = "'s inversion"
	UninvertedBucketName = "Could not be inverted"
	InvertedBucketName   = "Successfully inverted"
)

// Apply inserts r into p as a new "<name>'s inversion" category placed right
// after category (or appended to the root when category is the root). Each
// non-empty bucket is a sorted sub-category. Hotfix statements are wrapped
// again in a wrapper with their original metadata.
//
// Apply must run on the goroutine that owns p. On error nothing is attached
// to the tree.
func Apply(p *model.Patch, category model.NodeID, r *Result) (model.NodeID, error) {
	const op = "invert"
	src, err := p.Node(category)
	if err != nil {
		return model.NoNode, err
	}
	parent, index := p.Root(), -1
	if category != p.Root() {
		if src.Parent == model.NoNode {
			return model.NoNode, &model.StructuralError{Op: op, ID: category, Reason: "category is not part of the patch"}
		}
		parent, index = src.Parent, p.IndexOf(category)+1
	}

	// building the detached category emits events that mark p as changed
	wasChanged := p.Changed()
	top, err := p.NewCategory(r.Name + InversionSuffix)
	if err != nil {
		return model.NoNode, err
	}
	fail := func(err error) (model.NodeID, error) {
		_ = p.Discard(top)
		if !wasChanged {
			p.MarkSaved()
		}
		return model.NoNode, err
	}
	if err := fillBucket(p, top, UninvertedBucketName, r.Uninverted); err != nil {
		return fail(err)
	}
	if err := fillBucket(p, top, InvertedBucketName, r.Inverted); err != nil {
		return fail(err)
	}
	if err := p.InsertElementInto(top, parent, index); err != nil {
		return fail(err)
	}
	return top, nil
}

func fillBucket(p *model.Patch, top model.NodeID, name string, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	bucket, err := p.NewCategory(name)
	if err != nil {
		return err
	}
	if err := p.InsertElementInto(bucket, top, -1); err != nil {
		_ = p.Discard(bucket)
		return err
	}
	for _, s := range stmts {
		id, err := build(p, s)
		if err != nil {
			return err
		}
		if err := p.InsertElementInto(id, bucket, -1); err != nil {
			_ = p.Discard(id)
			return err
		}
	}
	return p.Sort(bucket)
}

// build creates the detached element for s: the statement itself, or a
// one-statement hotfix wrapper.
func build(p *model.Patch, s Statement) (model.NodeID, error) {
	var (
		id  model.NodeID
		err error
	)
	if s.Kind == model.KindSetCMPCommand {
		id, err = p.NewSetCMPCommand(s.Object, s.Field, s.CompareValue, s.Value)
	} else {
		id, err = p.NewSetCommand(s.Object, s.Field, s.Value)
	}
	if err != nil {
		return model.NoNode, err
	}
	if s.Wrapper == nil {
		return id, nil
	}

	w, err := p.NewHotfixWrapper(s.Wrapper.Name, s.Wrapper.Type, s.Wrapper.Parameter)
	if err != nil {
		_ = p.Discard(id)
		return model.NoNode, err
	}
	if err := p.InsertElementInto(id, w, -1); err != nil {
		_ = p.Discard(id)
		_ = p.Discard(w)
		return model.NoNode, err
	}
	return w, nil
}
