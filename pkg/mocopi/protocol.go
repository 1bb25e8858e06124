package mocopi

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// Box tags.
const (
	tagHead = "head"
	tagInfo = "info"
	tagSkdf = "skdf"
	tagFram = "fram"
	tagFtyp = "ftyp"
	tagVrsn = "vrsn"
	tagIpad = "ipad"
	tagRcvp = "rcvp"
	tagBons = "bons"
	tagBndt = "bndt"
	tagBnid = "bnid"
	tagPbid = "pbid"
	tagTran = "tran"
	tagFnum = "fnum"
	tagTime = "time"
	tagBtrs = "btrs"
	tagBtdt = "btdt"
)

// boxHeaderSize is the u32 length plus the 4-byte tag.
const boxHeaderSize = 8

// tranSize is 7 little-endian float32: quaternion xyzw then position xyz.
const tranSize = 28

// Transform is a bone transform as sent on the wire.
type Transform struct {
	Rot [4]float32 // x, y, z, w
	Pos [3]float32
}

// Skeleton converts t to float64 math types. Zero or non-finite
// rotations become identity.
func (t Transform) Skeleton() skeleton.Transform {
	q := mgl64.Quat{W: float64(t.Rot[3]), V: mgl64.Vec3{float64(t.Rot[0]), float64(t.Rot[1]), float64(t.Rot[2])}}
	return skeleton.Transform{
		Position: mgl64.Vec3{float64(t.Pos[0]), float64(t.Pos[1]), float64(t.Pos[2])},
		Rotation: skeleton.UnitQuat(q),
	}
}

// TransformOf converts a skeleton transform to wire form.
func TransformOf(t skeleton.Transform) Transform {
	return Transform{
		Rot: [4]float32{float32(t.Rotation.V[0]), float32(t.Rotation.V[1]), float32(t.Rotation.V[2]), float32(t.Rotation.W)},
		Pos: [3]float32{float32(t.Position[0]), float32(t.Position[1]), float32(t.Position[2])},
	}
}

// SkeletonBone is one entry of a skeleton definition.
type SkeletonBone struct {
	ID     BoneID
	Parent int // NoParent for the root
	Rest   *Transform
}

// FrameBone is one bone transform of a frame.
type FrameBone struct {
	ID    BoneID
	Trans Transform
}

// Frame is one motion sample.
type Frame struct {
	Number uint32
	Time   uint32
	Bones  []FrameBone
}

// Header carries the head and info boxes common to every packet.
type Header struct {
	FileType    string
	Version     byte
	IPAddress   uint64
	ReceivePort uint16
}

// PacketKind says which payload a packet carries.
type PacketKind int

const (
	KindSkeleton PacketKind = iota + 1
	KindFrame
)

// String returns the kind name.
func (k PacketKind) String() string {
	switch k {
	case KindSkeleton:
		return "skeleton"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Packet is a decoded datagram.
type Packet struct {
	Kind   PacketKind
	Header Header
	Bones  []SkeletonBone // KindSkeleton
	Frame  Frame          // KindFrame
}

type box struct {
	tag  string
	data []byte
}

// readBox reads the box starting at off and returns the offset after it.
func readBox(buf []byte, off int) (box, int, error) {
	if off+boxHeaderSize > len(buf) {
		return box{}, 0, fmt.Errorf("%w: header at %d", ErrTruncated, off)
	}
	n := int(binary.LittleEndian.Uint32(buf[off:]))
	tag := string(buf[off+4 : off+8])
	start := off + boxHeaderSize
	if n < 0 || n > len(buf)-start {
		return box{}, 0, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrTruncated, tag, n, len(buf)-start)
	}
	return box{tag: tag, data: buf[start : start+n]}, start + n, nil
}

// eachBox calls fn for every box in payload.
func eachBox(payload []byte, fn func(b box) error) error {
	for off := 0; off < len(payload); {
		b, next, err := readBox(payload, off)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		off = next
	}
	return nil
}

func parseTran(data []byte) (Transform, error) {
	if len(data) < tranSize {
		return Transform{}, fmt.Errorf("%w: tran has %d bytes", ErrTruncated, len(data))
	}
	var t Transform
	for i := 0; i < 4; i++ {
		t.Rot[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	for i := 0; i < 3; i++ {
		t.Pos[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[16+4*i:]))
	}
	return t, nil
}

func parseHeader(head, info []byte) (Header, error) {
	var h Header
	err := eachBox(head, func(b box) error {
		switch b.tag {
		case tagFtyp:
			h.FileType = string(b.data)
		case tagVrsn:
			if len(b.data) > 0 {
				h.Version = b.data[0]
			}
		}
		return nil
	})
	if err != nil {
		return h, err
	}

	err = eachBox(info, func(b box) error {
		switch b.tag {
		case tagIpad:
			if len(b.data) >= 8 {
				h.IPAddress = binary.LittleEndian.Uint64(b.data)
			}
		case tagRcvp:
			if len(b.data) >= 2 {
				h.ReceivePort = binary.LittleEndian.Uint16(b.data)
			}
		}
		return nil
	})
	return h, err
}

func parseBndt(data []byte) (SkeletonBone, error) {
	var (
		bone             SkeletonBone
		hasID, hasParent bool
	)
	err := eachBox(data, func(b box) error {
		switch b.tag {
		case tagBnid:
			if len(b.data) >= 2 {
				bone.ID = BoneID(binary.LittleEndian.Uint16(b.data))
				hasID = true
			}
		case tagPbid:
			if len(b.data) >= 2 {
				bone.Parent = int(binary.LittleEndian.Uint16(b.data))
				hasParent = true
			}
		case tagTran:
			t, err := parseTran(b.data)
			if err != nil {
				return err
			}
			bone.Rest = &t
		}
		return nil
	})
	if err != nil {
		return bone, err
	}
	if !hasID || !hasParent {
		return bone, fmt.Errorf("%w: bndt missing bnid or pbid", ErrMalformed)
	}
	if bone.Parent == int(bone.ID) || bone.Parent == math.MaxUint16 {
		bone.Parent = NoParent
	}
	return bone, nil
}

func parseSkdf(data []byte) ([]SkeletonBone, error) {
	var bones []SkeletonBone
	err := eachBox(data, func(b box) error {
		if b.tag != tagBons {
			return nil
		}
		return eachBox(b.data, func(bb box) error {
			if bb.tag != tagBndt {
				return nil
			}
			bone, err := parseBndt(bb.data)
			if err != nil {
				return err
			}
			bones = append(bones, bone)
			return nil
		})
	})
	return bones, err
}

func parseBtdt(data []byte) (FrameBone, error) {
	var (
		fb              FrameBone
		hasID, hasTrans bool
	)
	err := eachBox(data, func(b box) error {
		switch b.tag {
		case tagBnid:
			if len(b.data) >= 2 {
				fb.ID = BoneID(binary.LittleEndian.Uint16(b.data))
				hasID = true
			}
		case tagTran:
			t, err := parseTran(b.data)
			if err != nil {
				return err
			}
			fb.Trans = t
			hasTrans = true
		}
		return nil
	})
	if err != nil {
		return fb, err
	}
	if !hasID || !hasTrans {
		return fb, fmt.Errorf("%w: btdt missing bnid or tran", ErrMalformed)
	}
	return fb, nil
}

func parseFram(data []byte) (Frame, error) {
	var (
		f               Frame
		hasNum, hasTime bool
	)
	err := eachBox(data, func(b box) error {
		switch b.tag {
		case tagFnum:
			if len(b.data) >= 4 {
				f.Number = binary.LittleEndian.Uint32(b.data)
				hasNum = true
			}
		case tagTime:
			if len(b.data) >= 4 {
				f.Time = binary.LittleEndian.Uint32(b.data)
				hasTime = true
			}
		case tagBtrs:
			return eachBox(b.data, func(bb box) error {
				if bb.tag != tagBtdt {
					return nil
				}
				fb, err := parseBtdt(bb.data)
				if err != nil {
					return err
				}
				f.Bones = append(f.Bones, fb)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return f, err
	}
	if !hasNum || !hasTime {
		return f, fmt.Errorf("%w: fram missing fnum or time", ErrMalformed)
	}
	return f, nil
}

// ParsePacket decodes one datagram: head, info, then skdf or fram.
func ParsePacket(datagram []byte) (*Packet, error) {
	head, off, err := readBox(datagram, 0)
	if err != nil {
		return nil, err
	}
	info, off, err := readBox(datagram, off)
	if err != nil {
		return nil, err
	}
	body, _, err := readBox(datagram, off)
	if err != nil {
		return nil, err
	}

	hdr, err := parseHeader(head.data, info.data)
	if err != nil {
		return nil, err
	}

	switch body.tag {
	case tagSkdf:
		bones, err := parseSkdf(body.data)
		if err != nil {
			return nil, err
		}
		return &Packet{Kind: KindSkeleton, Header: hdr, Bones: bones}, nil

	case tagFram:
		f, err := parseFram(body.data)
		if err != nil {
			return nil, err
		}
		return &Packet{Kind: KindFrame, Header: hdr, Frame: f}, nil

	default:
		return nil, fmt.Errorf("%w: tag %q", ErrUnknownPacket, body.tag)
	}
}
