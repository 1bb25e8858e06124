package mocopi

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DecodeJSONFrame reads the line-oriented JSON frame format:
//
//	{"fnum":1,"time":2,"bones":{"l_hand":{"rot_xyzw":[x,y,z,w],"pos_xyz":[x,y,z]}}}
//
// Unknown bones and entries without a 4-element rotation and a 3-element
// position are skipped.
func DecodeJSONFrame(data []byte) (Frame, error) {
	if !gjson.ValidBytes(data) {
		return Frame{}, fmt.Errorf("%w: invalid JSON frame", ErrMalformed)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Frame{}, fmt.Errorf("%w: JSON frame is not an object", ErrMalformed)
	}

	f := Frame{
		Number: uint32(doc.Get("fnum").Uint()),
		Time:   uint32(doc.Get("time").Uint()),
	}

	doc.Get("bones").ForEach(func(key, value gjson.Result) bool {
		id, ok := ParseBone(key.String())
		if !ok {
			return true
		}
		rot := value.Get("rot_xyzw").Array()
		pos := value.Get("pos_xyz").Array()
		if len(rot) != 4 || len(pos) != 3 {
			return true
		}

		var t Transform
		for i, r := range rot {
			t.Rot[i] = float32(r.Float())
		}
		for i, p := range pos {
			t.Pos[i] = float32(p.Float())
		}
		f.Bones = append(f.Bones, FrameBone{ID: id, Trans: t})
		return true
	})
	return f, nil
}

// EncodeJSONFrame writes f in the format DecodeJSONFrame reads.
func EncodeJSONFrame(f Frame) ([]byte, error) {
	out := []byte(`{}`)
	out, err := sjson.SetBytes(out, "fnum", f.Number)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "time", f.Time); err != nil {
		return nil, err
	}
	if out, err = sjson.SetRawBytes(out, "bones", []byte(`{}`)); err != nil {
		return nil, err
	}

	for _, b := range f.Bones {
		base := "bones." + escapeKey(b.ID.String())
		rot := []float32{b.Trans.Rot[0], b.Trans.Rot[1], b.Trans.Rot[2], b.Trans.Rot[3]}
		pos := []float32{b.Trans.Pos[0], b.Trans.Pos[1], b.Trans.Pos[2]}
		if out, err = sjson.SetBytes(out, base+".rot_xyzw", rot); err != nil {
			return nil, err
		}
		if out, err = sjson.SetBytes(out, base+".pos_xyz", pos); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// IsResetCommand reports whether data is a {"command":"reset"} or
// {"reset":true} control message.
func IsResetCommand(data []byte) bool {
	if !gjson.ValidBytes(data) {
		return false
	}
	return gjson.GetBytes(data, "command").String() == "reset" ||
		gjson.GetBytes(data, "reset").Bool()
}

// escapeKey escapes gjson path metacharacters in a bone name.
func escapeKey(k string) string {
	var out []byte
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			out = append(out, '\\')
		}
		out = append(out, k[i])
	}
	return string(out)
}
