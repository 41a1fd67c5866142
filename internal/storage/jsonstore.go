// internal/storage/jsonstore.go
//
// JSON 快照編解碼。備份檔副檔名為 .json 時使用。

package storage

import (
	"encoding/json"
	"fmt"
	"io"
)

const jsonStorage = "json_snapshot"

// encodeJSON 以縮排格式輸出快照，方便人工檢視。
func encodeJSON(w io.Writer, snap Snapshot) error {
	snap.Meta.Storage = jsonStorage
	snap.Meta.Version = FormatVersion
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// decodeJSON 解析 JSON 快照；格式錯誤或版本不符皆視為檔案損毀。
func decodeJSON(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		if err == io.EOF {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("%w: decode json: %v", ErrCorruptFile, err)
	}
	if snap.Meta.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorruptFile, snap.Meta.Version)
	}
	return snap, nil
}
