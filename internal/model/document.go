// Package model 定义了导入管道、向量存储与查询服务共享的数据结构。
package model

// MetadataName 是每个分块元数据中指向源文档的键。
const MetadataName = "name"

// Document 是一次导入中读取到的源文件。
type Document struct {
	Name    string // 文件名（不含目录），同时是去重键
	Path    string // 源路径或对象键
	Format  string // 小写扩展名，带点
	Content []byte
}

// Chunk 是文档文本中的一个连续片段。
type Chunk struct {
	Text  string
	Name  string
	Index int
}

// Metadata 返回写入向量存储的元数据。
func (c Chunk) Metadata() map[string]string {
	return map[string]string{MetadataName: c.Name}
}

// Record 是向量存储中的一条记录。
type Record struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score,omitempty"`
}

// Name 返回记录所属文档名。
func (r Record) Name() string {
	return r.Metadata[MetadataName]
}
