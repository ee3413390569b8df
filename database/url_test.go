package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{"no database name", "postgres://u:p@localhost:5432", "", "postgres://u:p@localhost:5432"},
		{"plain", "postgres://u:p@localhost:5432", "casino", "postgres://u:p@localhost:5432/casino?sslmode=disable"},
		{"trailing slash", "postgres://u:p@localhost:5432/", "casino", "postgres://u:p@localhost:5432/casino?sslmode=disable"},
		{"existing query", "postgres://u:p@localhost:5432?connect_timeout=5", "casino", "postgres://u:p@localhost:5432/casino?connect_timeout=5&sslmode=disable"},
		{"existing sslmode", "postgres://u:p@localhost:5432?sslmode=require", "casino", "postgres://u:p@localhost:5432/casino?sslmode=require"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}
