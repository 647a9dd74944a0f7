package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ColumnKind 是列值允许的类型，取值为一个封闭集合。
type ColumnKind string

const (
	KindAny       ColumnKind = "any"
	KindString    ColumnKind = "string"
	KindInteger   ColumnKind = "integer"
	KindNumber    ColumnKind = "number"
	KindBoolean   ColumnKind = "boolean"
	KindJSON      ColumnKind = "json"
	KindTimestamp ColumnKind = "timestamp"
)

// CategoryColumn 是由分类器自动填充的列，校验时永远不要求提供。
const CategoryColumn = "category"

// KindFromType 把数据库或 OpenAPI 的类型名映射为 ColumnKind，无法识别的类型返回 KindAny。
func KindFromType(typeName string) ColumnKind {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "int", "int2", "int4", "int8", "integer", "smallint", "bigint", "tinyint", "mediumint",
		"serial", "bigserial", "smallserial":
		return KindInteger
	case "float", "float4", "float8", "real", "double", "double precision", "numeric", "decimal", "number":
		return KindNumber
	case "bool", "boolean":
		return KindBoolean
	case "json", "jsonb", "object", "array":
		return KindJSON
	case "timestamp", "timestamptz", "timestamp with time zone", "timestamp without time zone",
		"datetime", "date", "date-time":
		return KindTimestamp
	case "text", "varchar", "char", "character", "character varying", "uuid", "string",
		"longtext", "mediumtext", "tinytext", "enum":
		return KindString
	default:
		return KindAny
	}
}

// timestampLayouts 覆盖 ISO 8601 与 Postgres 的输出格式：T 或空格分隔，
// 时区可省略，也可以是 Z、±hh、±hhmm、±hh:mm。解析时秒后的小数部分总是可选的。
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Accepts 判断一个非空值是否符合该类型。
func (k ColumnKind) Accepts(v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindInteger:
		return isInteger(v)
	case KindNumber:
		return isNumber(v)
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindJSON:
		switch v.(type) {
		case map[string]any, []any, string:
			return true
		}
		return false
	case KindTimestamp:
		switch t := v.(type) {
		case time.Time:
			return true
		case string:
			for _, layout := range timestampLayouts {
				if _, err := time.Parse(layout, t); err == nil {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	}
	return false
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

// Column 描述表中的一列。
type Column struct {
	Name     string     `json:"name"`
	Kind     ColumnKind `json:"kind"`
	Required bool       `json:"required"`
}

// TableSchema 是一张表的列定义，以远端存储报告的列为准。
type TableSchema struct {
	Table   string
	Columns map[string]Column
}

// NewTableSchema 由列列表构造表结构。
func NewTableSchema(table string, columns []Column) *TableSchema {
	s := &TableSchema{Table: table, Columns: make(map[string]Column, len(columns))}
	for _, c := range columns {
		if c.Kind == "" {
			c.Kind = KindAny
		}
		s.Columns[c.Name] = c
	}
	return s
}

// Validate 逐字段校验数据，返回全部问题，没有问题时返回 nil。
// 规则：除 category 外的必填列必须存在且非空；不允许未声明的字段；非空值必须符合列类型。
func (s *TableSchema) Validate(data map[string]any) []string {
	var problems []string

	for _, name := range s.columnNames() {
		col := s.Columns[name]
		if !col.Required || name == CategoryColumn {
			continue
		}
		if v, ok := data[name]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("%s: field required", name))
		}
	}

	fields := make([]string, 0, len(data))
	for k := range data {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, field := range fields {
		v := data[field]
		col, ok := s.Columns[field]
		if !ok {
			if field != CategoryColumn {
				problems = append(problems, fmt.Sprintf("%s: unknown field for table %s", field, s.Table))
			}
			continue
		}
		if v != nil && !col.Kind.Accepts(v) {
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %T", field, col.Kind, v))
		}
	}
	return problems
}

func (s *TableSchema) columnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
