// internal/storage/file.go
//
// 備份檔的讀寫入口。依副檔名選擇編碼：.json 使用 JSON 快照，其餘使用行導向文字格式。
// 寫入採原子策略：先寫入同目錄的暫存檔並 fsync，再以 rename() 取代正式檔案，
// 寫入中斷時原檔不會損毀。
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrCorruptFile 代表備份檔存在但內容無法解析或自相矛盾。
var ErrCorruptFile = errors.New("corrupt ledger file")

type codec struct {
	encode func(io.Writer, Snapshot) error
	decode func(io.Reader) (Snapshot, error)
}

func codecFor(path string) codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return codec{encode: encodeJSON, decode: decodeJSON}
	}
	return codec{encode: encodeText, decode: decodeText}
}

// LoadSnapshot 讀取並解析指定路徑的備份檔。
// 檔案不存在時回傳的錯誤符合 errors.Is(err, fs.ErrNotExist)；
// 內容錯誤時符合 errors.Is(err, ErrCorruptFile)。
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	return codecFor(path).decode(f)
}

// SaveSnapshot 將快照寫入指定路徑並覆蓋原檔。
func SaveSnapshot(path string, snap Snapshot) (err error) {
	snap.Meta.Timestamp = time.Now().UTC()

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = codecFor(path).encode(f, snap); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
