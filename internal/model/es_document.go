package model

// EsChunk 定义了存储在 Elasticsearch 中的分块文档结构。
type EsChunk struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Name   string    `json:"name"` // keyword 字段，用于去重查询
	Index  int       `json:"chunk_index"`
	Vector []float32 `json:"vector,omitempty"`
}

// ToRecord 转换为通用记录结构。
func (d EsChunk) ToRecord(score float64) Record {
	return Record{
		ID:       d.ID,
		Text:     d.Text,
		Metadata: map[string]string{MetadataName: d.Name},
		Score:    score,
	}
}
