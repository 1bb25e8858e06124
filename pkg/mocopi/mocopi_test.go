package mocopi

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

var identity = [4]float32{0, 0, 0, 1}

// yaw90 is a 90 degree rotation about +Y as xyzw.
var yaw90 = [4]float32{0, float32(math.Sin(math.Pi / 4)), 0, float32(math.Cos(math.Pi / 4))}

// chainFrame returns a frame with every bone one decimeter above its
// parent, except the shoulders which sit one decimeter to the side. The
// root is at (1,0,0) turned 90 degrees about Y.
func chainFrame(skip ...BoneID) Frame {
	skipped := map[BoneID]bool{}
	for _, b := range skip {
		skipped[b] = true
	}

	f := Frame{Number: 7, Time: 1234}
	for i := 0; i < BoneCount; i++ {
		id := BoneID(i)
		if skipped[id] {
			continue
		}
		t := Transform{Rot: identity, Pos: [3]float32{0, 0.1, 0}}
		switch BoneNames[i] {
		case "root":
			t = Transform{Rot: yaw90, Pos: [3]float32{1, 0, 0}}
		case "l_shoulder", "r_shoulder":
			t.Pos = [3]float32{0.1, 0, 0}
		}
		f.Bones = append(f.Bones, FrameBone{ID: id, Trans: t})
	}
	return f
}

func vecNear(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	assert.InDelta(t, 0, want.Sub(got).Len(), 1e-5, "want %v got %v", want, got)
}

func TestBoneNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "l_hand", BoneID(14).String())
	assert.Equal(t, "bone_40", BoneID(40).String())

	id, ok := ParseBone("r_toes")
	require.True(t, ok)
	assert.Equal(t, BoneID(26), id)
	_, ok = ParseBone("tail")
	assert.False(t, ok)

	b, ok := BoneFor(skeleton.RightHand)
	require.True(t, ok)
	assert.Equal(t, "r_hand", b.String())
	_, ok = BoneFor(skeleton.JointCount)
	assert.False(t, ok)

	for i, p := range StandardParents {
		assert.Less(t, p, i, "parent of %s must come first", BoneNames[i])
	}
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	hdr := Header{FileType: "sony motion format", Version: 1, IPAddress: 42, ReceivePort: 12351}
	f := chainFrame()

	p, err := ParsePacket(EncodeFrame(hdr, f))
	require.NoError(t, err)
	assert.Equal(t, KindFrame, p.Kind)
	assert.Equal(t, "frame", p.Kind.String())
	if diff := cmp.Diff(hdr, p.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(f, p.Frame); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestSkeletonRoundTrip(t *testing.T) {
	t.Parallel()

	rest := Transform{Rot: identity, Pos: [3]float32{0, 0.2, 0}}
	bones := []SkeletonBone{
		{ID: 0, Parent: NoParent},
		{ID: 1, Parent: 0, Rest: &rest},
	}

	p, err := ParsePacket(EncodeSkeleton(Header{}, bones))
	require.NoError(t, err)
	assert.Equal(t, KindSkeleton, p.Kind)
	if diff := cmp.Diff(bones, p.Bones); diff != "" {
		t.Errorf("bones mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePacketErrors(t *testing.T) {
	t.Parallel()

	full := EncodeFrame(Header{}, chainFrame())

	_, err := ParsePacket(full[:len(full)-3])
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)

	_, err = ParsePacket(full[:5])
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)

	unknown := encodeHeader(nil, Header{})
	unknown = appendBox(unknown, "abcd", []byte{1, 2})
	_, err = ParsePacket(unknown)
	assert.True(t, errors.Is(err, ErrUnknownPacket), "got %v", err)

	noTime := encodeHeader(nil, Header{})
	noTime = appendBox(noTime, tagFram, appendBox(nil, tagFnum, u32(1)))
	_, err = ParsePacket(noTime)
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	shortTran := encodeHeader(nil, Header{})
	btdt := appendBox(appendBox(nil, tagBnid, u16(0)), tagTran, []byte{0, 0, 0})
	fram := appendBox(appendBox(nil, tagFnum, u32(1)), tagTime, u32(1))
	fram = appendBox(fram, tagBtrs, appendBox(nil, tagBtdt, btdt))
	shortTran = appendBox(shortTran, tagFram, fram)
	_, err = ParsePacket(shortTran)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
}

func TestSourceForwardKinematics(t *testing.T) {
	t.Parallel()

	s := NewSource(SourceConfig{})
	s.ApplyFrame(chainFrame())

	hips, ok := s.JointTransform(skeleton.Hips)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{1, 0, 0}, hips.Position)

	spine, ok := s.JointTransform(skeleton.Spine)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{1, 0.1, 0}, spine.Position)

	// Seven torso bones up, then 0.1 along local X, which the root yaw
	// turns into -Z.
	shoulder, ok := s.JointTransform(skeleton.LeftShoulder)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{1, 0.7, -0.1}, shoulder.Position)

	want := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	assert.InDelta(t, 0, skeleton.AngleDeg(want, shoulder.Rotation), 1e-3)

	leg, ok := s.JointTransform(skeleton.LeftUpperLeg)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{1, 0.1, 0}, leg.Position)

	n, ts := s.Frame()
	assert.Equal(t, uint32(7), n)
	assert.Equal(t, uint32(1234), ts)
	assert.Equal(t, uint64(1), s.Frames())
}

func TestSourceBrokenChain(t *testing.T) {
	t.Parallel()

	s := NewSource(SourceConfig{})
	s.ApplyFrame(chainFrame(3)) // torso_3 missing

	_, ok := s.JointTransform(skeleton.Hips)
	assert.True(t, ok)
	_, ok = s.JointTransform(skeleton.LeftFoot)
	assert.True(t, ok)
	for _, j := range []skeleton.JointID{skeleton.Chest, skeleton.Head, skeleton.LeftHand, skeleton.RightHand} {
		_, ok = s.JointTransform(j)
		assert.False(t, ok, "%s should be untracked", j)
	}

	// A rest pose fills the gap.
	rest := Transform{Rot: identity, Pos: [3]float32{0, 0.1, 0}}
	s.ApplySkeleton([]SkeletonBone{{ID: 3, Parent: 2, Rest: &rest}})
	assert.True(t, s.SkeletonReceived())
	s.ApplyFrame(chainFrame(3))

	hand, ok := s.JointTransform(skeleton.LeftHand)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{1, 1.0, -0.1}, hand.Position)
}

func TestSourceCustomHierarchy(t *testing.T) {
	t.Parallel()

	s := NewSource(SourceConfig{})
	// Hang the left hand directly off the root.
	s.ApplySkeleton([]SkeletonBone{{ID: 14, Parent: 0}})
	s.ApplyFrame(chainFrame())

	hand, ok := s.JointTransform(skeleton.LeftHand)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{1, 0.1, 0}, hand.Position)
}

func TestSourceWorldSpace(t *testing.T) {
	t.Parallel()

	s := NewSource(SourceConfig{WorldSpace: true})
	s.ApplyFrame(Frame{Bones: []FrameBone{
		{ID: 14, Trans: Transform{Rot: identity, Pos: [3]float32{0.5, 1.5, 0}}},
	}})

	hand, ok := s.JointTransform(skeleton.LeftHand)
	require.True(t, ok)
	vecNear(t, mgl64.Vec3{0.5, 1.5, 0}, hand.Position)

	_, ok = s.JointTransform(skeleton.Hips)
	assert.False(t, ok)
}

func TestSourcePoseAndReset(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewSource(SourceConfig{})
	s.now = func() time.Time { return now }

	assert.True(t, s.Stale(time.Second))
	s.ApplyFrame(chainFrame())
	assert.False(t, s.Stale(time.Second))
	now = now.Add(2 * time.Second)
	assert.True(t, s.Stale(time.Second))

	p := s.PoseInto(skeleton.Pose{skeleton.JointCount: {}})
	assert.Len(t, p, int(skeleton.JointCount))

	s.Reset()
	assert.Empty(t, s.PoseInto(nil))
	assert.Equal(t, uint64(0), s.Frames())
	_, ok := s.JointTransform(skeleton.JointID(-1))
	assert.False(t, ok)
}

func TestSourceExpiresSilentSensor(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewSource(SourceConfig{MaxAge: time.Second})
	s.now = func() time.Time { return now }

	s.ApplyFrame(chainFrame())
	now = now.Add(500 * time.Millisecond)
	_, ok := s.JointTransform(skeleton.LeftHand)
	assert.True(t, ok)
	assert.Len(t, s.PoseInto(nil), int(skeleton.JointCount))

	now = now.Add(time.Hour)
	_, ok = s.JointTransform(skeleton.LeftHand)
	assert.False(t, ok, "frame older than MaxAge is untracked")
	assert.Empty(t, s.PoseInto(skeleton.Pose{skeleton.Hips: {}}))

	s.ApplyFrame(chainFrame())
	_, ok = s.JointTransform(skeleton.LeftHand)
	assert.True(t, ok, "a new frame tracks again")
}

func TestSourceWithoutMaxAgeKeepsLastFrame(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewSource(SourceConfig{})
	s.now = func() time.Time { return now }

	s.ApplyFrame(chainFrame())
	now = now.Add(time.Hour)
	_, ok := s.JointTransform(skeleton.LeftHand)
	assert.True(t, ok)
}

func TestSourceDropsNonFiniteBones(t *testing.T) {
	t.Parallel()

	f := chainFrame()
	nan := float32(math.NaN())
	for i := range f.Bones {
		if f.Bones[i].ID == 14 {
			f.Bones[i].Trans.Pos = [3]float32{nan, 0, 0}
		}
	}

	s := NewSource(SourceConfig{})
	s.ApplyFrame(f)

	_, ok := s.JointTransform(skeleton.LeftHand)
	assert.False(t, ok)
	hand, ok := s.JointTransform(skeleton.RightHand)
	require.True(t, ok)
	assert.True(t, hand.Finite())
}

func TestDecodeJSONFrame(t *testing.T) {
	t.Parallel()

	data := `{"fnum": 3, "time": 99, "bones": {
		"l_hand": {"rot_xyzw": [0, 0, 0, 1], "pos_xyz": [0.5, 1.25, 0]},
		"r_hand": {"rot_xyzw": [0, 0, 1], "pos_xyz": [0, 0, 0]},
		"tail":   {"rot_xyzw": [0, 0, 0, 1], "pos_xyz": [0, 0, 0]}
	}}`
	f, err := DecodeJSONFrame([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), f.Number)
	assert.Equal(t, uint32(99), f.Time)
	require.Len(t, f.Bones, 1)
	assert.Equal(t, BoneID(14), f.Bones[0].ID)
	assert.Equal(t, [3]float32{0.5, 1.25, 0}, f.Bones[0].Trans.Pos)

	_, err = DecodeJSONFrame([]byte(`{"fnum":`))
	assert.True(t, errors.Is(err, ErrMalformed))
	_, err = DecodeJSONFrame([]byte(`[1,2]`))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestEncodeJSONFrame(t *testing.T) {
	t.Parallel()

	f := Frame{Number: 5, Time: 10, Bones: []FrameBone{
		{ID: 10, Trans: Transform{Rot: [4]float32{0, 0.5, 0, 0.5}, Pos: [3]float32{0, 1.5, 0.25}}},
		{ID: 18, Trans: Transform{Rot: identity, Pos: [3]float32{-0.5, 1, 0}}},
	}}
	data, err := EncodeJSONFrame(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"head"`)

	got, err := DecodeJSONFrame(data)
	require.NoError(t, err)
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestIsResetCommand(t *testing.T) {
	t.Parallel()

	assert.True(t, IsResetCommand([]byte(`{"command":"reset"}`)))
	assert.True(t, IsResetCommand([]byte(`{"reset":true}`)))
	assert.False(t, IsResetCommand([]byte(`{"command":"start"}`)))
	assert.False(t, IsResetCommand([]byte(`not json`)))
}

func TestListenerHandle(t *testing.T) {
	t.Parallel()

	resets := 0
	var seen []PacketKind
	src := NewSource(SourceConfig{})
	l := NewListener(ListenerConfig{
		OnReset:  func() { resets++ },
		OnPacket: func(p *Packet) { seen = append(seen, p.Kind) },
	}, src)

	require.NoError(t, l.Handle(EncodeSkeleton(Header{}, []SkeletonBone{{ID: 0, Parent: NoParent}})))
	require.NoError(t, l.Handle(EncodeFrame(Header{}, chainFrame())))
	require.NoError(t, l.Handle([]byte(` {"fnum":1,"time":2,"bones":{}}`)))
	require.NoError(t, l.Handle([]byte(`{"command":"reset"}`)))
	assert.Error(t, l.Handle([]byte{1, 2, 3}))

	assert.Equal(t, Stats{Packets: 5, Skeletons: 1, Frames: 2, Errors: 1}, l.Stats())
	assert.Equal(t, 1, resets)
	assert.Equal(t, []PacketKind{KindSkeleton, KindFrame, KindFrame}, seen)
	assert.Equal(t, uint64(2), src.Frames())
}

func TestListenerRun(t *testing.T) {
	t.Parallel()

	src := NewSource(SourceConfig{})
	l := NewListener(ListenerConfig{Address: "127.0.0.1:0"}, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-l.Ready():
	case err := <-done:
		t.Fatalf("Run failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not start")
	}

	conn, err := net.Dial("udp", l.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(EncodeFrame(Header{}, chainFrame()))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return src.Frames() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := src.JointTransform(skeleton.Head)
	assert.True(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestFeedRun(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		frame, _ := EncodeJSONFrame(chainFrame())
		conn.WriteMessage(websocket.TextMessage, []byte(`{"command":"reset"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		conn.WriteMessage(websocket.TextMessage, frame)

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	resets := make(chan struct{}, 1)
	src := NewSource(SourceConfig{})
	feed := NewFeed(FeedConfig{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		OnReset: func() { resets <- struct{}{} },
	}, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Frames() == 1 }, 3*time.Second, 10*time.Millisecond)
	select {
	case <-resets:
	default:
		t.Error("expected reset callback")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("feed did not stop")
	}
}
