package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// 支持的结构变更命令。
const (
	CommandAddColumn   = "add_column"
	CommandCreateTable = "create_table"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	dataTypePattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ (),]*$`)
)

// ColumnDef 是 create_table 中的一列。
type ColumnDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaCommand 是一条结构变更命令。
// add_column 使用 Table、Column、DataType；create_table 使用 Table、Columns。
type SchemaCommand struct {
	Type     string      `json:"type"`
	Table    string      `json:"table"`
	Column   string      `json:"column,omitempty"`
	DataType string      `json:"data_type,omitempty"`
	Columns  []ColumnDef `json:"columns,omitempty"`
}

// ParseSchemaCommand 把工具参数中的对象转换为命令。
func ParseSchemaCommand(raw any) (SchemaCommand, error) {
	var cmd SchemaCommand
	body, err := json.Marshal(raw)
	if err != nil {
		return cmd, fmt.Errorf("invalid schema command: %w", err)
	}
	if err := json.Unmarshal(body, &cmd); err != nil {
		return cmd, fmt.Errorf("invalid schema command: %w", err)
	}
	return cmd, nil
}

// errUnknownCommand 表示命令类型不受支持。
type errUnknownCommand struct{ kind string }

func (e errUnknownCommand) Error() string { return fmt.Sprintf("unknown command type: %q", e.kind) }

// SQL 把命令翻译为结构变更语句，同时校验标识符和类型。
func (c SchemaCommand) SQL() (string, error) {
	switch c.Type {
	case CommandAddColumn:
		if err := checkIdentifiers(c.Table, c.Column); err != nil {
			return "", err
		}
		if err := checkDataType(c.DataType); err != nil {
			return "", err
		}
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", c.Table, c.Column, c.DataType), nil
	case CommandCreateTable:
		if err := checkIdentifiers(c.Table); err != nil {
			return "", err
		}
		if len(c.Columns) == 0 {
			return "", fmt.Errorf("create_table requires at least one column")
		}
		defs := make([]string, 0, len(c.Columns))
		for _, col := range c.Columns {
			if err := checkIdentifiers(col.Name); err != nil {
				return "", err
			}
			if err := checkDataType(col.Type); err != nil {
				return "", err
			}
			defs = append(defs, col.Name+" "+col.Type)
		}
		return fmt.Sprintf("CREATE TABLE %s (%s);", c.Table, strings.Join(defs, ", ")), nil
	default:
		return "", errUnknownCommand{kind: c.Type}
	}
}

// SuccessMessage 返回命令成功后的提示。
func (c SchemaCommand) SuccessMessage() string {
	if c.Type == CommandAddColumn {
		return fmt.Sprintf("Added column %s to %s.", c.Column, c.Table)
	}
	return fmt.Sprintf("Created table %s.", c.Table)
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !identifierPattern.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

func checkDataType(t string) error {
	if !dataTypePattern.MatchString(t) {
		return fmt.Errorf("invalid data type %q", t)
	}
	return nil
}
