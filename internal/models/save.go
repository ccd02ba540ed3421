package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// CloudSave 云存档表，每个用户一行，写入即整体覆盖
type CloudSave struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	SaveData  string    `gorm:"type:text;not null" json:"save_data"` // 紧凑JSON
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (CloudSave) TableName() string {
	return "cloud_saves"
}

// SaveDocument 客户端上传的存档文档，除 level/coins 外不解析内容
type SaveDocument map[string]any

// DecodeSaveDocument 解析存档JSON，数字保留为json.Number以免精度丢失
func DecodeSaveDocument(data []byte) (SaveDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc SaveDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("存档不是JSON对象")
	}
	if dec.More() {
		return nil, fmt.Errorf("存档JSON后存在多余数据")
	}
	return doc, nil
}

// Encode 序列化为紧凑JSON，不转义HTML和非ASCII字符
func (d SaveDocument) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Level 读取关卡，只有整数值才算存在
func (d SaveDocument) Level() (int, bool) {
	return d.intField("level")
}

// Coins 读取金币数，只有整数值才算存在
func (d SaveDocument) Coins() (int, bool) {
	return d.intField("coins")
}

func (d SaveDocument) intField(key string) (int, bool) {
	v, ok := d[key]
	if !ok || v == nil {
		return 0, false
	}

	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return clampInt(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return n, true
	case int64:
		return clampInt(n)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return clampInt(int64(f))
}

func clampInt(i int64) (int, bool) {
	if int64(int(i)) != i {
		return 0, false
	}
	return int(i), true
}
