package mocopi

import (
	"encoding/binary"
	"math"
)

func appendBox(dst []byte, tag string, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, tag[:4]...)
	return append(dst, payload...)
}

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func encodeTran(t Transform) []byte {
	out := make([]byte, 0, tranSize)
	for _, v := range t.Rot {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	for _, v := range t.Pos {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func encodeHeader(dst []byte, h Header) []byte {
	ftyp := h.FileType
	if ftyp == "" {
		ftyp = "sony motion format"
	}
	var head []byte
	head = appendBox(head, tagFtyp, []byte(ftyp))
	head = appendBox(head, tagVrsn, []byte{h.Version})

	var info []byte
	info = appendBox(info, tagIpad, binary.LittleEndian.AppendUint64(nil, h.IPAddress))
	info = appendBox(info, tagRcvp, u16(h.ReceivePort))

	dst = appendBox(dst, tagHead, head)
	return appendBox(dst, tagInfo, info)
}

// EncodeSkeleton builds a skeleton definition datagram.
func EncodeSkeleton(h Header, bones []SkeletonBone) []byte {
	var bons []byte
	for _, b := range bones {
		parent := uint16(b.ID)
		if b.Parent != NoParent {
			parent = uint16(b.Parent)
		}
		var bndt []byte
		bndt = appendBox(bndt, tagBnid, u16(uint16(b.ID)))
		bndt = appendBox(bndt, tagPbid, u16(parent))
		if b.Rest != nil {
			bndt = appendBox(bndt, tagTran, encodeTran(*b.Rest))
		}
		bons = appendBox(bons, tagBndt, bndt)
	}

	out := encodeHeader(nil, h)
	return appendBox(out, tagSkdf, appendBox(nil, tagBons, bons))
}

// EncodeFrame builds a frame datagram.
func EncodeFrame(h Header, f Frame) []byte {
	var btrs []byte
	for _, b := range f.Bones {
		var btdt []byte
		btdt = appendBox(btdt, tagBnid, u16(uint16(b.ID)))
		btdt = appendBox(btdt, tagTran, encodeTran(b.Trans))
		btrs = appendBox(btrs, tagBtdt, btdt)
	}

	var fram []byte
	fram = appendBox(fram, tagFnum, u32(f.Number))
	fram = appendBox(fram, tagTime, u32(f.Time))
	fram = appendBox(fram, tagBtrs, btrs)

	out := encodeHeader(nil, h)
	return appendBox(out, tagFram, fram)
}
