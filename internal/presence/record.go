package presence

import (
	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/coedit/internal/value"
)

// Point is a cursor position in canvas coordinates.
type Point struct {
	X float64 `mapstructure:"x" json:"x"`
	Y float64 `mapstructure:"y" json:"y"`
}

// User identifies the person behind a peer.
type User struct {
	ID    string `mapstructure:"id" json:"id"`
	Name  string `mapstructure:"name" json:"name"`
	Color string `mapstructure:"color" json:"color"`
}

// Record is the presence payload one peer broadcasts. Every field may be
// missing; the zero value is the cleared record.
type Record struct {
	User             User     `mapstructure:"user"`
	Cursor           *Point   `mapstructure:"cursor"`
	IsActive         bool     `mapstructure:"isActive"`
	Highlighted      []string `mapstructure:"highlighted"`
	CurrentlyEditing string   `mapstructure:"currentlyEditing"`
	EditingCode      bool     `mapstructure:"editingCode"`
	Changed          string   `mapstructure:"changed"`
}

// Color is the peer's display color.
func (r Record) Color() string {
	return r.User.Color
}

// DecodeRecord decodes a raw awareness state. Decoding is weakly typed and
// never fails outright: fields that cannot be decoded keep their cleared
// value and the problem is logged.
func DecodeRecord(state value.Object) Record {
	var rec Record
	if state == nil {
		return rec
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           &rec,
	})
	if err != nil {
		slog.Error("presence decoder setup failed", "error", err)
		return Record{}
	}
	if err := dec.Decode(value.ToGo(state)); err != nil {
		slog.Debug("presence record partially decoded", "error", err)
	}
	return rec
}

// Encode renders the record as an awareness state, omitting cleared fields.
func (r Record) Encode() value.Object {
	obj := value.Object{}
	if r.User != (User{}) {
		obj["user"] = value.ObjectOf(
			value.O("id", value.String(r.User.ID)),
			value.O("name", value.String(r.User.Name)),
			value.O("color", value.String(r.User.Color)),
		)
	}
	if r.Cursor != nil {
		obj["cursor"] = value.ObjectOf(
			value.O("x", value.Number(r.Cursor.X)),
			value.O("y", value.Number(r.Cursor.Y)),
		)
	}
	if r.IsActive {
		obj["isActive"] = value.Bool(true)
	}
	if len(r.Highlighted) > 0 {
		arr := make(value.Array, len(r.Highlighted))
		for i, id := range r.Highlighted {
			arr[i] = value.String(id)
		}
		obj["highlighted"] = arr
	}
	if r.CurrentlyEditing != "" {
		obj["currentlyEditing"] = value.String(r.CurrentlyEditing)
	}
	if r.EditingCode {
		obj["editingCode"] = value.Bool(true)
	}
	if r.Changed != "" {
		obj["changed"] = value.String(r.Changed)
	}
	return obj
}
