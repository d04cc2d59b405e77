package layers

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/drivertest"
	"github.com/gogpu/compositor/engine"
	"github.com/gogpu/compositor/geom"
)

type fakeHost struct {
	mode     HostMode
	init     bool
	released int
}

func (h *fakeHost) Composite(*engine.Engine, bufferhost.CompositeParams) error { return nil }
func (h *fakeHost) ValidRegion() geom.Region                                   { return geom.Region{} }
func (h *fakeHost) Initialized() bool                                          { return h.init }
func (h *fakeHost) Release()                                                   { h.released++ }

type hostLog struct{ hosts []*fakeHost }

func (l *hostLog) factory(mode HostMode) ContentHost {
	h := &fakeHost{mode: mode}
	l.hosts = append(l.hosts, h)
	return h
}

func mustApply(t *testing.T, tree *Tree, ops ...Op) *Tree {
	t.Helper()
	next, err := tree.Apply(new(Transaction).Add(ops...))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	next.ReleaseDropped()
	return next
}

// basic builds root(1) -> [color(2), raster(3)].
func basic(t *testing.T, log *hostLog) *Tree {
	t.Helper()
	return mustApply(t, NewTree(log.factory),
		Create{ID: 1, Kind: KindContainer},
		Create{ID: 2, Kind: KindColor},
		Create{ID: 3, Kind: KindRaster},
		SetRoot{ID: 1},
		InsertAfter{Parent: 1, Child: 2},
		InsertAfter{Parent: 1, Child: 3, After: 2},
		AttachHost{ID: 3, Mode: HostSwap},
	)
}

func TestApplyBuildsTree(t *testing.T) {
	log := &hostLog{}
	tree := basic(t, log)

	if tree.Root().ID() != 1 {
		t.Fatalf("root = %d, want 1", tree.Root().ID())
	}
	var order []ID
	tree.Walk(func(n *Node, _ int) bool {
		order = append(order, n.ID())
		return true
	})
	want := []ID{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("walk = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("walk = %v, want %v", order, want)
		}
	}
	if len(log.hosts) != 1 || log.hosts[0].mode != HostSwap {
		t.Fatalf("hosts = %+v", log.hosts)
	}
	if tree.Node(3).Parent() != 1 {
		t.Errorf("parent of 3 = %d", tree.Node(3).Parent())
	}
}

func TestInsertAfterOrder(t *testing.T) {
	tree := basic(t, &hostLog{})
	tree = mustApply(t, tree,
		Create{ID: 4, Kind: KindColor},
		InsertAfter{Parent: 1, Child: 4, After: 2},
		Create{ID: 5, Kind: KindColor},
		InsertAfter{Parent: 1, Child: 5},
	)
	got := tree.Root().ChildIDs()
	want := []ID{5, 2, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children = %v, want %v", got, want)
		}
	}
}

func TestApplyIsAtomic(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
		want error
	}{
		{"unknown node", []Op{SetColor{ID: 99}}, ErrUnknownNode},
		{"unknown after", []Op{Create{ID: 4, Kind: KindColor}, InsertAfter{Parent: 1, Child: 4, After: 42}}, ErrUnknownNode},
		{"ancestor cycle", []Op{
			Create{ID: 4, Kind: KindContainer},
			InsertAfter{Parent: 1, Child: 4},
			Create{ID: 5, Kind: KindContainer},
			InsertAfter{Parent: 4, Child: 5},
			RemoveChild{Parent: 1, Child: 4},
			InsertAfter{Parent: 5, Child: 4},
		}, ErrCycle},
		{"insert root", []Op{Create{ID: 4, Kind: KindContainer}, InsertAfter{Parent: 4, Child: 1}}, ErrCycle},
		{"reference loop", []Op{
			Create{ID: 4, Kind: KindReference},
			InsertAfter{Parent: 1, Child: 4},
			SetRef{ID: 4, Target: 1},
		}, ErrCycle},
		{"duplicate", []Op{Create{ID: 2, Kind: KindColor}}, ErrDuplicateNode},
		{"color on container", []Op{SetColor{ID: 1}}, ErrInvalidOp},
		{"children on leaf", []Op{Create{ID: 4, Kind: KindColor}, InsertAfter{Parent: 2, Child: 4}}, ErrInvalidOp},
		{"opacity range", []Op{SetAttributes{ID: 2, Attributes: Attributes{Opacity: 2}}}, ErrInvalidOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &hostLog{}
			tree := basic(t, log)
			before := tree.Len()

			// A valid op ahead of the failing ones must not take effect.
			ops := append([]Op{SetColor{ID: 2, Color: [4]float32{1, 1, 1, 1}}}, tt.ops...)
			next, err := tree.Apply(new(Transaction).Add(ops...))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if next != nil {
				t.Fatal("rejected transaction returned a tree")
			}
			if tree.Len() != before || tree.Node(2).Color() != [4]float32{} {
				t.Fatal("rejected transaction modified the tree")
			}
		})
	}
}

func TestRejectedTransactionReleasesNewHosts(t *testing.T) {
	log := &hostLog{}
	tree := basic(t, log)
	_, err := tree.Apply(new(Transaction).Add(
		Create{ID: 4, Kind: KindRaster},
		AttachHost{ID: 4, Mode: HostUpload},
		SetColor{ID: 99},
	))
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("err = %v", err)
	}
	if log.hosts[0].released != 0 {
		t.Error("existing host released by a rejected transaction")
	}
	if log.hosts[1].released != 1 {
		t.Errorf("new host released %d times, want 1", log.hosts[1].released)
	}
}

func TestCopyOnWrite(t *testing.T) {
	tree := basic(t, &hostLog{})
	next := mustApply(t, tree, SetColor{ID: 2, Color: [4]float32{0, 0, 1, 1}})
	if tree.Node(2).Color() == next.Node(2).Color() {
		t.Fatal("Apply modified the original tree")
	}
	if tree.Node(3).Host() != next.Node(3).Host() {
		t.Fatal("payloads must be shared between versions")
	}
}

func TestDestroyReleasesOnAdoption(t *testing.T) {
	log := &hostLog{}
	tree := basic(t, log)

	next, err := tree.Apply(new(Transaction).Add(Destroy{ID: 3}))
	if err != nil {
		t.Fatal(err)
	}
	if log.hosts[0].released != 0 {
		t.Fatal("released before adoption")
	}
	next.ReleaseDropped()
	if log.hosts[0].released != 1 {
		t.Fatalf("released %d times, want 1", log.hosts[0].released)
	}
	if got := next.Root().ChildIDs(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("children = %v", got)
	}
	next.Release()
	if log.hosts[0].released != 1 {
		t.Fatal("destroyed host released twice")
	}
}

func TestAttachHostReplacesOld(t *testing.T) {
	log := &hostLog{}
	tree := basic(t, log)
	tree = mustApply(t, tree, AttachHost{ID: 3, Mode: HostUpload})
	if log.hosts[0].released != 1 {
		t.Fatal("replaced host not released")
	}
	if tree.Node(3).Host() != log.hosts[1] {
		t.Fatal("new host not attached")
	}
}

func TestReleaseOnce(t *testing.T) {
	log := &hostLog{}
	tree := basic(t, log)
	tree.Release()
	tree.Release()
	if log.hosts[0].released != 1 {
		t.Fatalf("released %d times, want 1", log.hosts[0].released)
	}
}

func TestReleaseImagePayload(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	im, err := NewImage(dev, img)
	if err != nil {
		t.Fatal(err)
	}
	tree := mustApply(t, NewTree(nil),
		Create{ID: 1, Kind: KindImage},
		SetRoot{ID: 1},
		SetImage{ID: 1, Image: im},
	)
	tree.Release()
	if live := dev.LiveTextures(); len(live) != 0 {
		t.Fatalf("%d textures still live", len(live))
	}
}

func TestFindPrimaryScrollable(t *testing.T) {
	scrollable := FrameMetrics{Scrollable: true, ContentSize: image.Pt(2000, 2000)}
	tests := []struct {
		name string
		ops  []Op
		want ID
	}{
		{"root when none", nil, 1},
		{"root itself", []Op{SetMetrics{ID: 1, Metrics: scrollable}}, 1},
		{"breadth first", []Op{
			Create{ID: 10, Kind: KindContainer},
			Create{ID: 11, Kind: KindContainer},
			Create{ID: 12, Kind: KindContainer},
			InsertAfter{Parent: 1, Child: 10},
			InsertAfter{Parent: 10, Child: 11},
			InsertAfter{Parent: 1, Child: 12, After: 10},
			SetMetrics{ID: 11, Metrics: scrollable},
			SetMetrics{ID: 12, Metrics: scrollable},
		}, 12},
		{"not scrollable ignored", []Op{
			Create{ID: 10, Kind: KindContainer},
			InsertAfter{Parent: 1, Child: 10},
			SetMetrics{ID: 10, Metrics: FrameMetrics{ContentSize: image.Pt(5, 5)}},
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := basic(t, &hostLog{})
			if len(tt.ops) > 0 {
				tree = mustApply(t, tree, tt.ops...)
			}
			if got := tree.FindPrimaryScrollable().ID(); got != tt.want {
				t.Errorf("FindPrimaryScrollable = %d, want %d", got, tt.want)
			}
		})
	}
	if NewTree(nil).FindPrimaryScrollable() != nil {
		t.Error("empty tree must have no scrollable")
	}
}

func TestShadowPropertiesAndEffectiveTransform(t *testing.T) {
	clip := image.Rect(0, 0, 50, 50)
	tree := mustApply(t, basic(t, &hostLog{}),
		SetAttributes{ID: 1, Attributes: Attributes{Transform: geom.Scale2D(2, 2), Opacity: 0.5}},
		SetAttributes{ID: 2, Attributes: Attributes{
			Transform: geom.Translate2D(10, 0),
			Opacity:   0.5,
			Clip:      &clip,
			Visible:   geom.RegionOf(image.Rect(0, 0, 5, 5)),
		}},
	)
	tree.SetShadowProperties()

	n := tree.Node(2)
	if n.ShadowClip == nil || *n.ShadowClip != clip {
		t.Fatalf("shadow clip = %v", n.ShadowClip)
	}
	if !n.ShadowVisible.Equal(n.Visible) {
		t.Fatal("shadow visible not copied")
	}
	p := geom.TransformPoint(tree.EffectiveTransform(n), geom.PointF{X: 1, Y: 1})
	if p != (geom.PointF{X: 22, Y: 2}) {
		t.Errorf("effective transform maps (1,1) to %v, want (22,2)", p)
	}
	if o := tree.EffectiveOpacity(n); o != 0.25 {
		t.Errorf("effective opacity = %v, want 0.25", o)
	}
}

func TestHasRenderableContent(t *testing.T) {
	log := &hostLog{}
	tree := basic(t, log)
	if tree.HasRenderableContent() {
		t.Fatal("empty color and uninitialized host are not renderable")
	}
	log.hosts[0].init = true
	if !tree.HasRenderableContent() {
		t.Fatal("initialized host is renderable")
	}
	tree = mustApply(t, tree, SetAttributes{ID: 1, Attributes: Attributes{Transform: geom.Identity(), Opacity: 0}})
	if tree.HasRenderableContent() {
		t.Fatal("transparent root hides everything")
	}
}

func TestNewImageForms(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.MaxTextureSize = 64
	dev := drivertest.NewWithCaps(caps, image.Pt(100, 100))

	opaque := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 0xff
	}
	im, err := NewImage(dev, opaque)
	if err != nil {
		t.Fatal(err)
	}
	if c := im.Chain(nil); c.Texture == nil || c.Texture.Handle.Format() != driver.FormatRGBX {
		t.Errorf("opaque image chain = %v", c)
	}

	big := image.NewNRGBA(image.Rect(0, 0, 100, 30))
	big.Set(0, 0, color.NRGBA{R: 1, A: 128})
	im, err = NewImage(dev, big)
	if err != nil {
		t.Fatal(err)
	}
	if c := im.Chain(nil); c.Tiled == nil || len(c.Tiled.Tiles.Tiles()) != 2 {
		t.Errorf("large image chain = %v", c)
	}

	yc := image.NewYCbCr(image.Rect(0, 0, 9, 5), image.YCbCrSubsampleRatio420)
	im, err = NewImage(dev, yc)
	if err != nil {
		t.Fatal(err)
	}
	c := im.Chain(nil)
	if c.YCbCr == nil {
		t.Fatalf("planar chain = %v", c)
	}
	if got := c.YCbCr.Cb.Size(); got != image.Pt(5, 3) {
		t.Errorf("chroma size = %v, want (5,3)", got)
	}
	im.Release()
	im.Release()
}
