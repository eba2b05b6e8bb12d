// Payload codec: TableDef/ViewDef are gob-encoded into Definition.Payload,
// matching commit's encodeRecord/DecodeRecord approach to CDC records
// ([[file:../commit/cdc_codec.go]]) so every opaque-payload part of the
// module agrees on one serialization strategy.
package catalog

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func init() {
	gob.Register(TableDef{})
	gob.Register(ViewDef{})
}

// EncodeTableDef gob-encodes a TableDef for storage as a Definition's Payload.
func EncodeTableDef(def TableDef) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(def); err != nil {
		return nil, fmt.Errorf("catalog: encode table def: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTableDef reverses EncodeTableDef.
func DecodeTableDef(raw []byte) (TableDef, error) {
	var def TableDef
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&def); err != nil {
		return TableDef{}, fmt.Errorf("catalog: decode table def: %w", err)
	}
	return def, nil
}

// EncodeViewDef gob-encodes a ViewDef for storage as a Definition's Payload.
func EncodeViewDef(def ViewDef) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(def); err != nil {
		return nil, fmt.Errorf("catalog: encode view def: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeViewDef reverses EncodeViewDef.
func DecodeViewDef(raw []byte) (ViewDef, error) {
	var def ViewDef
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&def); err != nil {
		return ViewDef{}, fmt.Errorf("catalog: decode view def: %w", err)
	}
	return def, nil
}
