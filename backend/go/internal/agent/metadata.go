package agent

// Metadata 是对外展示的能力描述，例如健康检查接口中列出的能力。
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MetadataOf 提取能力的描述信息。
func MetadataOf(c Capability) Metadata {
	return Metadata{Name: c.Name(), Description: c.Description()}
}
