package telegram

import (
	"strings"
	"sync"
)

// SchemaManager remembers which grading schema each chat asked for.
type SchemaManager struct {
	def string
	m   sync.Map // chatID -> string
}

func NewSchemaManager(def string) *SchemaManager {
	if s, ok := NormalizeSchema(def); ok {
		def = s
	} else {
		def = "v2"
	}
	return &SchemaManager{def: def}
}

func (m *SchemaManager) Get(chatID int64) string {
	if v, ok := m.m.Load(chatID); ok {
		return v.(string)
	}
	return m.def
}

func (m *SchemaManager) Set(chatID int64, schema string) {
	m.m.Store(chatID, schema)
}

// NormalizeSchema maps user input onto "v1" or "v2".
func NormalizeSchema(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1", "physical":
		return "v1", true
	case "v2", "2", "nct", "quality":
		return "v2", true
	default:
		return "", false
	}
}
